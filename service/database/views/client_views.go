/*
 * @module service/database/views/client_views
 * @description 客户风险视图定义：客户与（可选）评分的左连接聚合视图
 * @architecture 数据库视图层
 * @documentReference DESIGN.md
 * @stateFlow 迁移时先删除再重建，保证视图列与表结构一致
 * @rules 只使用 SQLite 与 PostgreSQL 共同支持的语法
 * @dependencies 无
 * @refs service/models/client.go, service/database/store.go
 */

package views

// ClientRiskInfo 客户风险视图名称
const ClientRiskInfo = "client_risk_info"

var ClientViews = map[string]string{
	// 客户及其最新评分，未评分的客户 final_score/risk_tier 为 NULL
	ClientRiskInfo: `
		CREATE VIEW client_risk_info AS
		SELECT
			c.*,
			s.final_score,
			s.risk_tier
		FROM clients c
		LEFT JOIN client_scores s ON s.client_id = c.id
	`,
}
