package services_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/clearlink/backend/internal/adapters/memory"
	"github.com/zatekoja/clearlink/backend/internal/application/services"
	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/clearlink/backend/pkg/errors"
)

type MockZoneDistanceRepository struct {
	mock.Mock
}

func (m *MockZoneDistanceRepository) Get(ctx context.Context, from, to entities.Zone) (float64, bool, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).(float64), args.Bool(1), args.Error(2)
}

func (m *MockZoneDistanceRepository) List(ctx context.Context) ([]*entities.ZoneDistance, error) {
	return nil, nil
}

func (m *MockZoneDistanceRepository) Upsert(ctx context.Context, distance *entities.ZoneDistance) error {
	return nil
}

func TestResourceMatcher_Rank(t *testing.T) {
	env := newTestEnv(t)

	ranked, err := env.matcher.Rank(context.Background(), entities.ZoneA, false)
	require.NoError(t, err)

	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.Resource.ID
	}
	// van-1 and car-1 both start in A; van-1 is more reliable
	assert.Equal(t, []string{"van-1", "car-1", "van-2"}, ids)
	assert.Equal(t, 0.0, ranked[0].DistanceKm)
	assert.Equal(t, 8.0, ranked[2].DistanceKm)
	assert.True(t, ranked[2].Reachable)
}

func TestResourceMatcher_WheelchairIsHardFilter(t *testing.T) {
	env := newTestEnv(t)

	ranked, err := env.matcher.Rank(context.Background(), entities.ZoneA, true)
	require.NoError(t, err)

	require.Len(t, ranked, 2)
	for _, r := range ranked {
		assert.True(t, r.Resource.WheelchairOK)
	}
}

func TestResourceMatcher_MissingEdgeUsesSentinel(t *testing.T) {
	env := newTestEnv(t)

	ranked, err := env.matcher.Rank(context.Background(), entities.ZoneB, true)
	require.NoError(t, err)

	require.Len(t, ranked, 2)
	// both unreachable; reliability decides
	assert.Equal(t, "van-2", ranked[0].Resource.ID)
	assert.Equal(t, float64(services.DefaultUnreachableKm), ranked[0].DistanceKm)
	assert.False(t, ranked[0].Reachable)
}

func TestResourceMatcher_OrderIndependentOfInsertion(t *testing.T) {
	ctx := context.Background()
	resources := []*entities.Resource{
		{ID: "r-a", StartZone: entities.ZoneA, ReliabilityScore: 0.5, IsActive: true},
		{ID: "r-b", StartZone: entities.ZoneB, ReliabilityScore: 0.9, IsActive: true},
		{ID: "r-c", StartZone: entities.ZoneB, ReliabilityScore: 0.9, IsActive: true},
		{ID: "r-d", StartZone: entities.ZoneC, ReliabilityScore: 0.7, IsActive: true},
		{ID: "r-e", StartZone: entities.ZoneC, ReliabilityScore: 0.95, IsActive: true, WheelchairOK: true},
		{ID: "r-off", StartZone: entities.ZoneA, ReliabilityScore: 1, IsActive: false},
	}
	want := []string{"r-a", "r-b", "r-c", "r-e", "r-d"}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		store := memory.NewStore()
		rng.Shuffle(len(resources), func(a, b int) { resources[a], resources[b] = resources[b], resources[a] })
		for _, r := range resources {
			require.NoError(t, store.Resources().Create(ctx, r))
		}
		require.NoError(t, store.ZoneDistances().Upsert(ctx, &entities.ZoneDistance{FromZone: entities.ZoneB, ToZone: entities.ZoneA, Km: 5}))
		require.NoError(t, store.ZoneDistances().Upsert(ctx, &entities.ZoneDistance{FromZone: entities.ZoneC, ToZone: entities.ZoneA, Km: 9}))

		ranked, err := services.NewResourceMatcher(store.Resources(), store.ZoneDistances(), 0).Rank(ctx, entities.ZoneA, false)
		require.NoError(t, err)

		got := make([]string, len(ranked))
		for j, r := range ranked {
			got[j] = r.Resource.ID
		}
		require.Equal(t, want, got)
	}
}

func TestResourceMatcher_LooksUpEachZoneOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	for _, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, store.Resources().Create(ctx, &entities.Resource{ID: id, StartZone: entities.ZoneC, IsActive: true, CreatedAt: time.Now()}))
	}

	distances := new(MockZoneDistanceRepository)
	distances.On("Get", mock.Anything, entities.ZoneC, entities.ZoneA).Return(4.5, true, nil).Once()

	ranked, err := services.NewResourceMatcher(store.Resources(), distances, 0).Rank(ctx, entities.ZoneA, false)
	require.NoError(t, err)
	assert.Len(t, ranked, 3)
	distances.AssertExpectations(t)
}

func TestResourceMatcher_DistanceLookupFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Resources().Create(ctx, &entities.Resource{ID: "r1", StartZone: entities.ZoneB, IsActive: true}))

	distances := new(MockZoneDistanceRepository)
	distances.On("Get", mock.Anything, entities.ZoneB, entities.ZoneA).Return(0.0, false, errors.New("redis down"))

	_, err := services.NewResourceMatcher(store.Resources(), distances, 0).Rank(ctx, entities.ZoneA, false)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
}

func TestResourceMatcher_Best(t *testing.T) {
	env := newTestEnv(t)

	best, err := env.matcher.Best(context.Background(), entities.ZoneC, true)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "van-2", best.Resource.ID)

	empty := services.NewResourceMatcher(memory.NewStore().Resources(), memory.NewStore().ZoneDistances(), 0)
	best, err = empty.Best(context.Background(), entities.ZoneA, false)
	require.NoError(t, err)
	assert.Nil(t, best)
}

func TestResourceMatcher_DistanceTable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.ZoneDistances().Upsert(ctx, &entities.ZoneDistance{FromZone: entities.ZoneA, ToZone: entities.ZoneB, Km: 5}))

	table, err := env.matcher.DistanceTable(ctx)
	require.NoError(t, err)
	require.Len(t, table.Edges, 2)
	assert.Equal(t, entities.ZoneA, table.Edges[0].FromZone)
	assert.Equal(t, entities.ZoneC, table.Edges[1].FromZone)
	assert.Equal(t, float64(services.DefaultUnreachableKm), table.UnreachableKm)
}
