package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/courier-dispatch/api/middleware"
	"github.com/angelmondragon/courier-dispatch/api/responses"
	"github.com/angelmondragon/courier-dispatch/api/validators"
	"github.com/angelmondragon/courier-dispatch/internal/deliveries"
	"github.com/angelmondragon/courier-dispatch/internal/orders"
	"github.com/angelmondragon/courier-dispatch/pkg/geo"
	"github.com/angelmondragon/courier-dispatch/pkg/logger"
)

type placeOrderItemRequest struct {
	MenuItemID     *uuid.UUID `json:"menu_item_id"`
	Name           string     `json:"name" validate:"required,max=200"`
	Quantity       int        `json:"quantity" validate:"gt=0,lte=999"`
	UnitPriceCents int        `json:"unit_price_cents" validate:"gte=0,lte=1000000"`
}

type placeOrderRequest struct {
	RestaurantID      uuid.UUID               `json:"restaurant_id" validate:"required"`
	DeliveryAddressID *uuid.UUID              `json:"delivery_address_id"`
	DropoffLatitude   *float64                `json:"dropoff_lat" validate:"required,latitude"`
	DropoffLongitude  *float64                `json:"dropoff_lon" validate:"required,longitude"`
	DeliveryFeeCents  int                     `json:"delivery_fee_cents" validate:"gte=0,lte=100000000"`
	Notes             *string                 `json:"notes" validate:"omitempty,max=500"`
	Items             []placeOrderItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

// PlaceOrder creates a PENDING order for the calling customer.
func PlaceOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req placeOrderRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := orders.PlaceInput{
			CustomerID:        middleware.ActorIDFromContext(r.Context()),
			RestaurantID:      req.RestaurantID,
			DeliveryAddressID: req.DeliveryAddressID,
			Dropoff:           geo.Point{Lat: *req.DropoffLatitude, Lon: *req.DropoffLongitude},
			DeliveryFeeCents:  req.DeliveryFeeCents,
			Notes:             req.Notes,
			Items:             make([]orders.PlaceItemInput, 0, len(req.Items)),
		}
		for _, item := range req.Items {
			input.Items = append(input.Items, orders.PlaceItemInput{
				MenuItemID:     item.MenuItemID,
				Name:           strings.TrimSpace(item.Name),
				Quantity:       item.Quantity,
				UnitPriceCents: item.UnitPriceCents,
			})
		}

		order, err := svc.Place(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, orders.NewOrderDTO(order))
	}
}

func GetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders.NewOrderDTO(order))
	}
}

// TransitionOrder moves an order along its lifecycle on behalf of the restaurant or courier.
func TransitionOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req statusRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Transition(r.Context(), orders.TransitionInput{
			OrderID: orderID,
			Status:  req.Status,
			ActorID: middleware.ActorIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders.NewOrderDTO(order))
	}
}

type autoAssignResponse struct {
	Assigned   bool                `json:"assigned"`
	CourierID  *uuid.UUID          `json:"courier_id,omitempty"`
	DistanceKm *float64            `json:"distance_km,omitempty"`
	Fallback   bool                `json:"fallback"`
	Reason     string              `json:"reason,omitempty"`
	Delivery   *orders.DeliveryDTO `json:"delivery,omitempty"`
}

// AutoAssignOrder runs courier matching for a READY order. Finding nobody is a 200.
func AutoAssignOrder(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.AutoAssign(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := autoAssignResponse{
			Assigned:   result.Assigned,
			CourierID:  result.CourierID,
			DistanceKm: result.DistanceKm,
			Fallback:   result.Fallback,
			Reason:     result.Reason,
		}
		if result.Delivery != nil {
			dto := orders.NewDeliveryDTO(result.Delivery)
			resp.Delivery = &dto
		}
		responses.WriteSuccess(w, resp)
	}
}
