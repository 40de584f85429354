/*
 * @module service/anomaly/scaler
 * @description 逐特征标准化（均值/总体标准差）
 * @architecture 分层架构 - 业务计算层
 * @documentReference DESIGN.md
 * @rules 标准差为 0 的特征按 1 处理；预测时特征维度必须与训练一致
 * @refs detector.go
 */

package anomaly

import (
	"fmt"
	"math"
)

// standardScaler 逐特征标准化参数（总体标准差）
type standardScaler struct {
	Mean  []float64
	Scale []float64
}

func fitScaler(matrix [][]float64) *standardScaler {
	dims := len(matrix[0])
	n := float64(len(matrix))
	s := &standardScaler{Mean: make([]float64, dims), Scale: make([]float64, dims)}

	for _, row := range matrix {
		for j, v := range row {
			s.Mean[j] += v
		}
	}
	for j := range s.Mean {
		s.Mean[j] /= n
	}

	for _, row := range matrix {
		for j, v := range row {
			d := v - s.Mean[j]
			s.Scale[j] += d * d
		}
	}
	for j := range s.Scale {
		std := math.Sqrt(s.Scale[j] / n)
		// 常量特征不缩放
		if std == 0 || math.IsNaN(std) || math.IsInf(std, 0) {
			std = 1
		}
		s.Scale[j] = std
	}
	return s
}

func (s *standardScaler) transform(vec []float64) ([]float64, error) {
	if len(vec) != len(s.Mean) {
		return nil, fmt.Errorf("特征维度不匹配: 期望 %d, 实际 %d", len(s.Mean), len(vec))
	}
	out := make([]float64, len(vec))
	for j, v := range vec {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
		if math.IsNaN(out[j]) || math.IsInf(out[j], 0) {
			return nil, fmt.Errorf("特征 %d 标准化结果非有限值", j)
		}
	}
	return out, nil
}

func (s *standardScaler) transformAll(matrix [][]float64) ([][]float64, error) {
	out := make([][]float64, len(matrix))
	for i, row := range matrix {
		v, err := s.transform(row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
