package scoring

import (
	"clientrisk-service/service/database"
	"clientrisk-service/service/models"
	"clientrisk-service/testutil"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	readErr  error
	writeErr error
	clients  []models.Client
}

func (s *failingStore) GetAllRecords(ctx context.Context) ([]models.Client, error) {
	return s.clients, s.readErr
}

func (s *failingStore) UpsertScoreRecord(ctx context.Context, score models.ClientScore) error {
	return s.writeErr
}

func fixedClock() time.Time {
	return time.Date(2026, 10, 16, 15, 30, 0, 0, time.FixedZone("CEST", 2*3600))
}

func TestRecomputeAll(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	factory := testutil.NewTestDataFactory(tdb.DB)
	store := database.NewStore(tdb.DB)
	ctx := context.Background()

	rich := factory.CreateClient(testutil.WithBaseScore(800), testutil.WithAge(30), testutil.WithBalance(50000))
	poor := factory.CreateClient(testutil.WithBaseScore(200), testutil.WithAge(90), testutil.WithBalance(-300))

	engine := NewEngine(store).WithClock(fixedClock)

	n, err := engine.RecomputeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var first []models.ClientScore
	require.NoError(t, tdb.DB.Order("client_id").Find(&first).Error)
	require.Len(t, first, 2)

	assert.Equal(t, rich.ID, first[0].ClientID)
	assert.Equal(t, models.RiskTierLow, first[0].RiskTier)
	assert.Equal(t, models.RiskTierHigh, first[1].RiskTier)
	assert.Equal(t, ComputeScore(*poor), first[1].FinalScore)
	assert.True(t, first[0].ComputedAt.Equal(time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)))

	// 幂等：再次执行结果完全一致
	n, err = engine.RecomputeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var second []models.ClientScore
	require.NoError(t, tdb.DB.Order("client_id").Find(&second).Error)
	require.Len(t, second, 2)
	for i := range first {
		assert.Equal(t, first[i].ClientID, second[i].ClientID)
		assert.Equal(t, first[i].FinalScore, second[i].FinalScore)
		assert.Equal(t, first[i].RiskTier, second[i].RiskTier)
		assert.True(t, first[i].ComputedAt.Equal(second[i].ComputedAt))
	}
}

func TestRecomputeAllEmptyStore(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	n, err := NewEngine(database.NewStore(tdb.DB)).RecomputeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRecomputeAllErrors(t *testing.T) {
	boom := errors.New("boom")

	_, err := NewEngine(&failingStore{readErr: boom}).RecomputeAll(context.Background())
	assert.ErrorIs(t, err, boom)

	store := &failingStore{writeErr: boom, clients: []models.Client{{ID: 1, BaseScore: 500, Age: 40}}}
	_, err = NewEngine(store).RecomputeAll(context.Background())
	assert.ErrorIs(t, err, boom)
}
