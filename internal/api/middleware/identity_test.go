package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/clearlink/backend/internal/adapters/memory"
	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/clearlink/backend/pkg/errors"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *entities.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Users().Create(ctx, &entities.User{ID: "u-staff", Role: entities.RoleStaff, Name: "Nurse Jo"}))
	require.NoError(t, store.Users().Create(ctx, &entities.User{ID: "u-maya", Role: entities.RoleDriver, Name: "Maya"}))
	require.NoError(t, store.Users().Create(ctx, &entities.User{ID: "u-new", Role: entities.RoleDriver, Name: "Unlinked"}))
	require.NoError(t, store.Resources().Create(ctx, &entities.Resource{
		ID: "van-1", Type: entities.ResourceTypeVan, DriverUserID: entities.StringPtr("u-maya"),
		WheelchairOK: true, StartZone: entities.ZoneA, ReliabilityScore: 0.9, IsActive: true,
	}))
	return store
}

func principalEcho(t *testing.T, got *entities.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		require.True(t, ok)
		*got = p
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestIdentity_ResolvesStaffAndDriver(t *testing.T) {
	store := seededStore(t)
	resolver := NewIdentityResolver(store.Users(), store.Resources(), 0, 0)

	var got entities.Principal
	handler := resolver.Middleware(principalEcho(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/api/staff/queue", nil)
	req.Header.Set(UserIDHeader, "u-staff")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, got.IsStaff())

	req = httptest.NewRequest(http.MethodGet, "/api/driver/tasks", nil)
	req.Header.Set(UserIDHeader, "u-maya")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, got.IsDriver())
	assert.Equal(t, "van-1", got.ResourceID)
}

func TestIdentity_UnlinkedDriverHasNoResource(t *testing.T) {
	store := seededStore(t)
	resolver := NewIdentityResolver(store.Users(), store.Resources(), 0, 0)

	p, err := resolver.Resolve(context.Background(), "u-new")
	require.NoError(t, err)
	assert.Equal(t, entities.RoleDriver, p.Role)
	assert.False(t, p.IsDriver())
}

func TestIdentity_MissingOrUnknownUser(t *testing.T) {
	store := seededStore(t)
	resolver := NewIdentityResolver(store.Users(), store.Resources(), 0, 0)
	handler := resolver.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/staff/queue", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/staff/queue", nil)
	req.Header.Set(UserIDHeader, "u-ghost")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown user")
}

func TestIdentity_CachesPrincipal(t *testing.T) {
	users := new(MockUserRepository)
	users.On("GetByID", mock.Anything, "u-staff").
		Return(&entities.User{ID: "u-staff", Role: entities.RoleStaff}, nil).Once()

	resolver := NewIdentityResolver(users, memory.NewStore().Resources(), 8, time.Minute)
	for i := 0; i < 3; i++ {
		p, err := resolver.Resolve(context.Background(), "u-staff")
		require.NoError(t, err)
		assert.True(t, p.IsStaff())
	}
	users.AssertExpectations(t)
	users.AssertNumberOfCalls(t, "GetByID", 1)
}

func TestIdentity_DriverLinkedLaterIsPickedUp(t *testing.T) {
	store := seededStore(t)
	resolver := NewIdentityResolver(store.Users(), store.Resources(), 8, time.Minute)

	p, err := resolver.Resolve(context.Background(), "u-new")
	require.NoError(t, err)
	assert.False(t, p.IsDriver())

	require.NoError(t, store.Resources().Create(context.Background(), &entities.Resource{
		ID: "car-9", Type: entities.ResourceTypeVolunteer, DriverUserID: entities.StringPtr("u-new"),
		StartZone: entities.ZoneB, ReliabilityScore: 0.8, IsActive: true,
	}))

	p, err = resolver.Resolve(context.Background(), "u-new")
	require.NoError(t, err)
	assert.True(t, p.IsDriver())
	assert.Equal(t, "car-9", p.ResourceID)
}

func TestIdentity_StoreFailureIs500(t *testing.T) {
	users := new(MockUserRepository)
	users.On("GetByID", mock.Anything, "u-staff").
		Return(nil, apperrors.NewInternalError("db down", nil))

	resolver := NewIdentityResolver(users, memory.NewStore().Resources(), 0, 0)
	handler := resolver.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/staff/queue", nil)
	req.Header.Set(UserIDHeader, "u-staff")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
