package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/courier-dispatch/api/middleware"
	"github.com/angelmondragon/courier-dispatch/api/responses"
	"github.com/angelmondragon/courier-dispatch/api/validators"
	"github.com/angelmondragon/courier-dispatch/internal/couriers"
	"github.com/angelmondragon/courier-dispatch/pkg/db/models"
	"github.com/angelmondragon/courier-dispatch/pkg/logger"
)

type presenceRequest struct {
	Online    *bool    `json:"online" validate:"required"`
	Latitude  *float64 `json:"lat" validate:"required_with=Longitude,omitempty,latitude"`
	Longitude *float64 `json:"lon" validate:"required_with=Latitude,omitempty,longitude"`
}

type courierDTO struct {
	UserID          uuid.UUID  `json:"user_id"`
	Online          bool       `json:"online"`
	Available       bool       `json:"available"`
	Latitude        *float64   `json:"lat,omitempty"`
	Longitude       *float64   `json:"lon,omitempty"`
	TotalDeliveries int        `json:"total_deliveries"`
	LastSeenAt      *time.Time `json:"last_seen_at,omitempty"`
}

func newCourierDTO(c *models.CourierProfile) courierDTO {
	return courierDTO{
		UserID:          c.UserID,
		Online:          c.Online,
		Available:       c.Available,
		Latitude:        c.CurrentLatitude,
		Longitude:       c.CurrentLongitude,
		TotalDeliveries: c.TotalDeliveries,
		LastSeenAt:      c.LastSeenAt,
	}
}

// SetCourierPresence toggles the calling courier online or offline.
func SetCourierPresence(svc couriers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req presenceRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		courier, err := svc.SetPresence(r.Context(), couriers.PresenceInput{
			CourierID: middleware.ActorIDFromContext(r.Context()),
			Online:    *req.Online,
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCourierDTO(courier))
	}
}

func GetCourier(svc couriers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courierID, err := validators.ParseUUIDParam(r, "courierId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		courier, err := svc.Get(r.Context(), courierID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCourierDTO(courier))
	}
}
