package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zatekoja/clearlink/backend/internal/adapters/events"
	"github.com/zatekoja/clearlink/backend/internal/adapters/memory"
	"github.com/zatekoja/clearlink/backend/internal/application/services"
	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	"github.com/zatekoja/clearlink/backend/internal/domain/providers"
	"github.com/zatekoja/clearlink/backend/internal/domain/repositories"
)

var testNow = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

var (
	staff = entities.Principal{UserID: "u-staff", Role: entities.RoleStaff}
	maya  = entities.Principal{UserID: "u-maya", Role: entities.RoleDriver, ResourceID: "van-1"}
	sam   = entities.Principal{UserID: "u-sam", Role: entities.RoleDriver, ResourceID: "car-1"}
)

type testEnv struct {
	store     *memory.Store
	bus       providers.EventBus
	matcher   *services.ResourceMatcher
	audit     *services.AuditRecorder
	dispatch  *services.DispatchService
	dashboard *services.DashboardService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	for _, r := range []*entities.Resource{
		{ID: "van-1", Type: entities.ResourceTypeVan, DisplayName: "Maya", DriverUserID: entities.StringPtr("u-maya"), WheelchairOK: true, StartZone: entities.ZoneA, ReliabilityScore: 0.9, IsActive: true, CreatedAt: testNow},
		{ID: "car-1", Type: entities.ResourceTypeVolunteer, DisplayName: "Sam", DriverUserID: entities.StringPtr("u-sam"), WheelchairOK: false, StartZone: entities.ZoneA, ReliabilityScore: 0.85, IsActive: true, CreatedAt: testNow},
		{ID: "van-2", Type: entities.ResourceTypeVan, DisplayName: "Community Van", WheelchairOK: true, StartZone: entities.ZoneC, ReliabilityScore: 0.99, IsActive: true, CreatedAt: testNow},
	} {
		require.NoError(t, store.Resources().Create(ctx, r))
	}
	require.NoError(t, store.ZoneDistances().Upsert(ctx, &entities.ZoneDistance{FromZone: entities.ZoneC, ToZone: entities.ZoneA, Km: 8}))

	clock := providers.FixedClock{At: testNow}
	bus := events.NewLocalEventBus()
	t.Cleanup(func() { _ = bus.Close() })

	matcher := services.NewResourceMatcher(store.Resources(), store.ZoneDistances(), 0)
	audit := services.NewAuditRecorder(store.Audit(), clock, time.Second, 0, nil)

	return &testEnv{
		store:     store,
		bus:       bus,
		matcher:   matcher,
		audit:     audit,
		dispatch:  services.NewDispatchService(store.Tasks(), store.Resources(), matcher, audit, bus, clock, nil),
		dashboard: services.NewDashboardService(store.Tasks(), store.Appointments(), store.Patients(), store.Resources(), matcher, clock),
	}
}

// urgentWheelchair scores 95 with a 12h SLA
func urgentWheelchair() services.CreateTransportRequestInput {
	return services.CreateTransportRequestInput{
		PickupZone:    entities.ZoneA,
		MobilityNeed:  entities.MobilityWheelchair,
		Destination:   entities.DestinationHospital,
		ScheduledAt:   testNow.Add(20 * time.Hour),
		UrgencyTier:   2,
		DistanceBand:  2,
		WinterMode:    true,
		MissedHistory: 0,
		ReasonCode:    "DIALYSIS",
	}
}

// routine scores 0 with a 72h SLA
func routine(zone entities.Zone) services.CreateTransportRequestInput {
	return services.CreateTransportRequestInput{
		PickupZone:   zone,
		MobilityNeed: entities.MobilityNone,
		Destination:  entities.DestinationNursingStation,
		ScheduledAt:  testNow.Add(100 * time.Hour),
		ReasonCode:   "CHECKUP",
	}
}

func (e *testEnv) create(t *testing.T, in services.CreateTransportRequestInput) *services.CreateResult {
	t.Helper()
	res, err := e.dispatch.CreateTransportRequest(context.Background(), staff, in)
	require.NoError(t, err)
	return res
}

func (e *testEnv) task(t *testing.T, id string) *entities.TransportTask {
	t.Helper()
	task, err := e.store.Tasks().GetByID(context.Background(), id)
	require.NoError(t, err)
	return task
}

func (e *testEnv) resource(t *testing.T, id string) *entities.Resource {
	t.Helper()
	r, err := e.store.Resources().GetByID(context.Background(), id)
	require.NoError(t, err)
	return r
}

func (e *testEnv) actions(t *testing.T) []entities.AuditAction {
	t.Helper()
	recent, err := e.store.Audit().ListRecent(context.Background(), 0)
	require.NoError(t, err)
	result := make([]entities.AuditAction, len(recent))
	for i, ev := range recent {
		result[len(recent)-1-i] = ev.Action
	}
	return result
}

// interleavedTasks runs before once, after the service has read the task and before its
// transition commits
type interleavedTasks struct {
	repositories.TransportTaskRepository
	before func()
	once   sync.Once
}

func (r *interleavedTasks) ApplyTransition(ctx context.Context, tr entities.TaskTransition) (bool, error) {
	r.once.Do(r.before)
	return r.TransportTaskRepository.ApplyTransition(ctx, tr)
}

// interleaved returns a dispatch service over the same store whose next commit is preceded
// by before
func (e *testEnv) interleaved(before func()) *services.DispatchService {
	tasks := &interleavedTasks{TransportTaskRepository: e.store.Tasks(), before: before}
	return services.NewDispatchService(tasks, e.store.Resources(), e.matcher, e.audit, e.bus, providers.FixedClock{At: testNow}, nil)
}
