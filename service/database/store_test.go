package database

import (
	"clientrisk-service/service/models"
	"clientrisk-service/testutil"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *testutil.TestDataFactory) {
	tdb := testutil.NewTestDB(t)
	return NewStore(tdb.DB), testutil.NewTestDataFactory(tdb.DB)
}

func TestBatchInsertAndGetAllRecords(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	records := []models.Client{
		testutil.NewClient(testutil.WithName("Alice")),
		testutil.NewClient(testutil.WithName("Bob")),
		testutil.NewClient(testutil.WithName("Chloé")),
	}
	require.NoError(t, store.BatchInsert(ctx, records))

	all, err := store.GetAllRecords(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Alice", all[0].Name)
	assert.Equal(t, "Chloé", all[2].Name)
	assert.NotZero(t, all[0].ID)

	require.NoError(t, store.BatchInsert(ctx, nil))
}

func TestBatchInsertIsAtomic(t *testing.T) {
	store, factory := newTestStore(t)
	ctx := context.Background()

	existing := factory.CreateClient()

	// 第二条与已有记录主键冲突，整批回滚
	clash := testutil.NewClient()
	clash.ID = existing.ID
	err := store.BatchInsert(ctx, []models.Client{testutil.NewClient(), clash})
	require.Error(t, err)

	all, err := store.GetAllRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpsertScoreRecord(t *testing.T) {
	store, factory := newTestStore(t)
	ctx := context.Background()

	client := factory.CreateClient()
	day := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.UpsertScoreRecord(ctx, models.ClientScore{
		ClientID: client.ID, FinalScore: 520, RiskTier: models.RiskTierMedium, ComputedAt: day,
	}))
	require.NoError(t, store.UpsertScoreRecord(ctx, models.ClientScore{
		ClientID: client.ID, FinalScore: 720, RiskTier: models.RiskTierLow, ComputedAt: day.AddDate(0, 0, 1),
	}))

	var count int64
	require.NoError(t, store.DB().Model(&models.ClientScore{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	score, err := store.GetScore(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, 720, score.FinalScore)
	assert.Equal(t, models.RiskTierLow, score.RiskTier)
}

func TestClientCRUD(t *testing.T) {
	store, factory := newTestStore(t)
	ctx := context.Background()

	client := testutil.NewClient(testutil.WithName("Marie Curie"))
	require.NoError(t, store.AddClient(ctx, &client))
	require.NotZero(t, client.ID)

	got, err := store.GetClient(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, "Marie Curie", got.Name)

	got.Balance = -200
	got.Segment = models.SegmentVIP
	require.NoError(t, store.UpdateClient(ctx, got))

	updated, err := store.GetClient(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, -200.0, updated.Balance)
	assert.Equal(t, models.SegmentVIP, updated.Segment)

	factory.CreateScore(client.ID, 400, models.RiskTierMedium)
	factory.CreateTransaction(client.ID, 50, time.Now())

	require.NoError(t, store.DeleteClient(ctx, client.ID))
	_, err = store.GetClient(ctx, client.ID)
	assert.ErrorIs(t, err, ErrClientNotFound)

	_, err = store.GetScore(ctx, client.ID)
	assert.Error(t, err)

	txns, err := store.ListTransactions(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, txns)

	assert.ErrorIs(t, store.DeleteClient(ctx, client.ID), ErrClientNotFound)

	missing := testutil.NewClient()
	missing.ID = 9999
	assert.ErrorIs(t, store.UpdateClient(ctx, &missing), ErrClientNotFound)
}

func TestListClientViews(t *testing.T) {
	store, factory := newTestStore(t)
	ctx := context.Background()

	alice := factory.CreateClient(testutil.WithName("Alice Martin"), testutil.WithRegion("Bretagne"))
	bob := factory.CreateClient(testutil.WithName("Bob Durand"), testutil.WithRegion("Normandie"))
	factory.CreateClient(testutil.WithName("Claire Martin"), testutil.WithRegion("Bretagne"))

	factory.CreateScore(alice.ID, 800, models.RiskTierLow)
	factory.CreateScore(bob.ID, 200, models.RiskTierHigh)

	t.Run("无过滤", func(t *testing.T) {
		views, err := store.ListClientViews(ctx, ClientFilter{Region: "Toutes", RiskTier: "Tous"})
		require.NoError(t, err)
		require.Len(t, views, 3)
		require.NotNil(t, views[2].FinalScore)
		assert.Equal(t, alice.ID, views[2].ID)
		assert.Equal(t, 800, *views[2].FinalScore)
		assert.Nil(t, views[0].FinalScore)
		assert.Nil(t, views[0].RiskTier)
	})

	t.Run("按地区过滤", func(t *testing.T) {
		views, err := store.ListClientViews(ctx, ClientFilter{Region: "Bretagne"})
		require.NoError(t, err)
		assert.Len(t, views, 2)
	})

	t.Run("按风险等级过滤", func(t *testing.T) {
		views, err := store.ListClientViews(ctx, ClientFilter{RiskTier: "High"})
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, bob.ID, views[0].ID)
	})

	t.Run("按名称搜索不区分大小写", func(t *testing.T) {
		views, err := store.ListClientViews(ctx, ClientFilter{Search: "martin"})
		require.NoError(t, err)
		assert.Len(t, views, 2)
	})

	regions, err := store.ListRegions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bretagne", "Normandie"}, regions)
}

func TestAddTransactionUpdatesBalance(t *testing.T) {
	store, factory := newTestStore(t)
	ctx := context.Background()

	client := factory.CreateClient(testutil.WithName("Alice"), testutil.WithBalance(100))

	day := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.AddTransaction(ctx, &models.Transaction{ClientID: client.ID, Amount: -150, Date: day}))
	require.NoError(t, store.AddTransaction(ctx, &models.Transaction{ClientID: client.ID, Amount: 20, Date: day.AddDate(0, 0, 1)}))

	got, err := store.GetClient(ctx, client.ID)
	require.NoError(t, err)
	assert.InDelta(t, -30.0, got.Balance, 1e-9)

	txns, err := store.ListTransactions(ctx, "ali")
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, 20.0, txns[0].Amount)
	assert.Equal(t, "Alice", txns[0].ClientName)

	err = store.AddTransaction(ctx, &models.Transaction{ClientID: 9999, Amount: 1, Date: day})
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestClearAll(t *testing.T) {
	store, factory := newTestStore(t)
	ctx := context.Background()

	client := factory.CreateClient()
	factory.CreateScore(client.ID, 500, models.RiskTierMedium)
	factory.CreateTransaction(client.ID, 10, time.Now())

	require.NoError(t, store.ClearAll(ctx))

	all, err := store.GetAllRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

// TestZeroValuesArePersisted 零值字段原样落库，不被数据库默认值替换
func TestZeroValuesArePersisted(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	client := testutil.NewClient(
		testutil.WithName("Zoé"),
		testutil.WithBaseScore(0),
		testutil.WithBalance(0),
		testutil.WithTenure(0),
	)
	require.NoError(t, store.AddClient(ctx, &client))
	assert.Equal(t, 0.0, client.BaseScore)

	stored, err := store.GetClient(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, stored.BaseScore)
	assert.Equal(t, 0.0, stored.Balance)
	assert.Equal(t, 0, stored.TenureYears)

	batch := []models.Client{testutil.NewClient(testutil.WithName("Yann"), testutil.WithBaseScore(0))}
	require.NoError(t, store.BatchInsert(ctx, batch))

	all, err := store.GetAllRecords(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, c := range all {
		assert.Equal(t, 0.0, c.BaseScore, c.Name)
	}
}
