// Package seed loads the demo dataset: the zone distance table, one staff account,
// two drivers with their resources and three open transport requests.
package seed

import (
	"context"
	"time"

	"github.com/zatekoja/clearlink/backend/internal/application/services"
	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	"github.com/zatekoja/clearlink/backend/internal/domain/repositories"
	"github.com/zatekoja/clearlink/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/clearlink/backend/pkg/errors"
)

// Demo user ids. The API resolves callers by these through the X-User-ID header.
const (
	StaffUserID   = "u-staff"
	MayaUserID    = "u-maya"
	AlexUserID    = "u-alex"
	MayaResource  = "res-maya"
	VanResource   = "res-van"
	staffName     = "Nursing Station Staff"
	seedReasonTag = "demo"
)

// Distances is the symmetric demo distance table in km
var Distances = []entities.ZoneDistance{
	{FromZone: entities.ZoneA, ToZone: entities.ZoneB, Km: 12},
	{FromZone: entities.ZoneA, ToZone: entities.ZoneC, Km: 25},
	{FromZone: entities.ZoneB, ToZone: entities.ZoneC, Km: 18},
	{FromZone: entities.ZoneA, ToZone: entities.ZoneHospital, Km: 110},
	{FromZone: entities.ZoneB, ToZone: entities.ZoneHospital, Km: 98},
	{FromZone: entities.ZoneC, ToZone: entities.ZoneHospital, Km: 120},
	{FromZone: entities.ZoneA, ToZone: entities.ZoneNursing, Km: 6},
	{FromZone: entities.ZoneB, ToZone: entities.ZoneNursing, Km: 4},
	{FromZone: entities.ZoneC, ToZone: entities.ZoneNursing, Km: 8},
	{FromZone: entities.ZoneNursing, ToZone: entities.ZoneHospital, Km: 110},
}

// Summary reports what a run created
type Summary struct {
	Edges    int      `json:"edges"`
	Users    int      `json:"users"`
	Requests []string `json:"requests"`
}

// Seeder writes the demo dataset through the repositories and the dispatch service
type Seeder struct {
	users     repositories.UserRepository
	resources repositories.ResourceRepository
	zones     repositories.ZoneDistanceRepository
	dispatch  *services.DispatchService
}

// NewSeeder creates a seeder
func NewSeeder(users repositories.UserRepository, resources repositories.ResourceRepository, zones repositories.ZoneDistanceRepository, dispatch *services.DispatchService) *Seeder {
	return &Seeder{users: users, resources: resources, zones: zones, dispatch: dispatch}
}

// Run is safe to repeat: distances are upserted, accounts are created once and
// transport requests are only opened on the run that created the staff account.
func (s *Seeder) Run(ctx context.Context, now time.Time) (*Summary, error) {
	logger := observability.ComponentLogger(ctx, "seed")
	summary := &Summary{Requests: []string{}}

	for _, d := range Distances {
		forward, reverse := d, entities.ZoneDistance{FromZone: d.ToZone, ToZone: d.FromZone, Km: d.Km}
		for _, edge := range []*entities.ZoneDistance{&forward, &reverse} {
			if err := s.zones.Upsert(ctx, edge); err != nil {
				return nil, err
			}
			summary.Edges++
		}
	}

	fresh, err := s.ensureUser(ctx, &entities.User{ID: StaffUserID, Role: entities.RoleStaff, Name: staffName, CreatedAt: now})
	if err != nil {
		return nil, err
	}
	if fresh {
		summary.Users++
	}

	drivers := []struct {
		user     entities.User
		resource entities.Resource
	}{
		{
			user: entities.User{ID: MayaUserID, Role: entities.RoleDriver, Name: "Volunteer Driver - Maya", CreatedAt: now},
			resource: entities.Resource{
				ID: MayaResource, Type: entities.ResourceTypeVolunteer, DisplayName: "Maya (Volunteer)",
				StartZone: entities.ZoneB, WheelchairOK: false, ReliabilityScore: 0.85, IsActive: true, CreatedAt: now,
			},
		},
		{
			user: entities.User{ID: AlexUserID, Role: entities.RoleDriver, Name: "Van Driver - Alex", CreatedAt: now},
			resource: entities.Resource{
				ID: VanResource, Type: entities.ResourceTypeVan, DisplayName: "Community Van (Alex)",
				StartZone: entities.ZoneA, WheelchairOK: true, ReliabilityScore: 0.92, IsActive: true, CreatedAt: now,
			},
		},
	}
	for _, d := range drivers {
		user, resource := d.user, d.resource
		created, err := s.ensureUser(ctx, &user)
		if err != nil {
			return nil, err
		}
		if created {
			summary.Users++
		}
		resource.DriverUserID = entities.StringPtr(user.ID)
		if err := s.ensureResource(ctx, &resource); err != nil {
			return nil, err
		}
	}

	if !fresh {
		logger.Info().Msg("demo accounts already present; skipping transport requests")
		return summary, nil
	}

	staff := entities.Principal{UserID: StaffUserID, Role: entities.RoleStaff}
	requests := []services.CreateTransportRequestInput{
		{
			PickupZone: entities.ZoneC, MobilityNeed: entities.MobilityNone, Destination: entities.DestinationHospital,
			ScheduledAt: now.Add(20 * time.Hour), UrgencyTier: 2, DistanceBand: 2, WinterMode: true,
			ReasonCode: "CARDIOLOGY_FU", ExternalRef: seedReasonTag,
		},
		{
			PickupZone: entities.ZoneA, MobilityNeed: entities.MobilityWheelchair, Destination: entities.DestinationHospital,
			ScheduledAt: now.Add(30 * time.Hour), UrgencyTier: 1, DistanceBand: 2, MissedHistory: 1,
			ReasonCode: "POST_DISCHARGE", ExternalRef: seedReasonTag,
		},
		{
			PickupZone: entities.ZoneB, MobilityNeed: entities.MobilityAssist, Destination: entities.DestinationNursingStation,
			ScheduledAt: now.Add(72 * time.Hour), ReasonCode: "ROUTINE_CHECK", ExternalRef: seedReasonTag,
		},
	}
	for _, in := range requests {
		res, err := s.dispatch.CreateTransportRequest(ctx, staff, in)
		if err != nil {
			return nil, err
		}
		summary.Requests = append(summary.Requests, res.Task.ID)
	}

	logger.Info().
		Int("edges", summary.Edges).
		Int("users", summary.Users).
		Int("requests", len(summary.Requests)).
		Msg("demo data seeded")
	return summary, nil
}

func (s *Seeder) ensureUser(ctx context.Context, user *entities.User) (bool, error) {
	if _, err := s.users.GetByID(ctx, user.ID); err == nil {
		return false, nil
	} else if !apperrors.IsNotFound(err) {
		return false, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Seeder) ensureResource(ctx context.Context, resource *entities.Resource) error {
	if _, err := s.resources.GetByID(ctx, resource.ID); err == nil {
		return nil
	} else if !apperrors.IsNotFound(err) {
		return err
	}
	return s.resources.Create(ctx, resource)
}
