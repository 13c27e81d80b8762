package couriers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/courier-dispatch/pkg/db/models"
	pkgerrors "github.com/angelmondragon/courier-dispatch/pkg/errors"
	"github.com/angelmondragon/courier-dispatch/pkg/geo"
	"github.com/angelmondragon/courier-dispatch/pkg/metrics"
)

// Service exposes courier matching and presence.
type Service interface {
	FindNearestCourier(ctx context.Context, pickupLat, pickupLon, maxDistanceKm float64) (*Match, error)
	SetPresence(ctx context.Context, input PresenceInput) (*models.CourierProfile, error)
	Get(ctx context.Context, courierID uuid.UUID) (*models.CourierProfile, error)
}

// PresenceInput toggles a courier online/offline, optionally with a fresh coordinate.
type PresenceInput struct {
	CourierID uuid.UUID
	Online    bool
	Latitude  *float64
	Longitude *float64
}

type service struct {
	repo    Repository
	metrics *metrics.DispatchMetrics
	now     func() time.Time
}

// NewService builds the courier service. metrics may be nil.
func NewService(repo Repository, m *metrics.DispatchMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("courier repository required")
	}
	return &service{repo: repo, metrics: m, now: time.Now}, nil
}

// FindNearestCourier only reads; the caller performs the claim.
func (s *service) FindNearestCourier(ctx context.Context, pickupLat, pickupLon, maxDistanceKm float64) (*Match, error) {
	pickup := geo.Point{Lat: pickupLat, Lon: pickupLon}
	if !pickup.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup coordinate out of range").
			WithDetails(map[string]any{"lat": pickupLat, "lon": pickupLon})
	}

	candidates, err := s.repo.ListAvailable(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list available couriers")
	}

	match, ok := Nearest(candidates, pickup, maxDistanceKm)
	if !ok {
		s.metrics.IncMatch(metrics.MatchNone)
		return nil, nil
	}
	if match.Fallback {
		s.metrics.IncMatch(metrics.MatchFallback)
	} else {
		s.metrics.IncMatch(metrics.MatchInRadius)
	}
	return &match, nil
}

func (s *service) SetPresence(ctx context.Context, input PresenceInput) (*models.CourierProfile, error) {
	if input.CourierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "courier id required")
	}
	if (input.Latitude == nil) != (input.Longitude == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "latitude and longitude must be sent together")
	}
	if input.Latitude != nil && !(geo.Point{Lat: *input.Latitude, Lon: *input.Longitude}).Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coordinate out of range")
	}

	now := s.now()
	courier, err := s.repo.FindByID(ctx, input.CourierID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		courier = &models.CourierProfile{
			UserID:           input.CourierID,
			Online:           input.Online,
			Available:        true,
			CurrentLatitude:  input.Latitude,
			CurrentLongitude: input.Longitude,
			LastSeenAt:       &now,
		}
		if err := s.repo.Create(ctx, courier); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create courier profile")
		}
		return courier, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load courier profile")
	}

	updates := map[string]any{
		"online":       input.Online,
		"last_seen_at": now,
	}
	if input.Latitude != nil {
		updates["current_latitude"] = *input.Latitude
		updates["current_longitude"] = *input.Longitude
		courier.CurrentLatitude = input.Latitude
		courier.CurrentLongitude = input.Longitude
	}
	if err := s.repo.UpdatePresence(ctx, input.CourierID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update courier presence")
	}
	courier.Online = input.Online
	courier.LastSeenAt = &now
	return courier, nil
}

func (s *service) Get(ctx context.Context, courierID uuid.UUID) (*models.CourierProfile, error) {
	courier, err := s.repo.FindByID(ctx, courierID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "courier not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load courier profile")
	}
	return courier, nil
}
