package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/courier-dispatch/api/controllers"
	"github.com/angelmondragon/courier-dispatch/api/middleware"
	"github.com/angelmondragon/courier-dispatch/internal/couriers"
	"github.com/angelmondragon/courier-dispatch/internal/deliveries"
	"github.com/angelmondragon/courier-dispatch/internal/notifications"
	"github.com/angelmondragon/courier-dispatch/internal/orders"
	"github.com/angelmondragon/courier-dispatch/pkg/config"
	"github.com/angelmondragon/courier-dispatch/pkg/logger"
)

// RouterParams carries everything the HTTP edge dispatches to.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	Readiness     map[string]controllers.Pinger
	Gatherer      prometheus.Gatherer
	Orders        orders.Service
	Deliveries    deliveries.Service
	Couriers      couriers.Service
	Notifications notifications.Service
}

func NewRouter(p RouterParams) http.Handler {
	logg := p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(p.Config.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, logg, p.Readiness))
	})
	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor(logg))
		r.Use(middleware.RequireActor(logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.PlaceOrder(p.Orders, logg))
			r.Get("/{orderId}", controllers.GetOrder(p.Orders, logg))
			r.Post("/{orderId}/status", controllers.TransitionOrder(p.Orders, logg))
			r.Post("/{orderId}/auto-assign", controllers.AutoAssignOrder(p.Deliveries, logg))
		})

		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/{deliveryId}", controllers.GetDelivery(p.Deliveries, logg))
			r.Post("/{deliveryId}/assign", controllers.AssignCourier(p.Deliveries, logg))
			r.Post("/{deliveryId}/status", controllers.UpdateDeliveryStatus(p.Deliveries, logg))
			r.Put("/{deliveryId}/location", controllers.UpdateDeliveryLocation(p.Deliveries, logg))
		})

		r.Route("/couriers", func(r chi.Router) {
			r.Put("/me/presence", controllers.SetCourierPresence(p.Couriers, logg))
			r.Get("/{courierId}", controllers.GetCourier(p.Couriers, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(p.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
			r.Delete("/{notificationId}", controllers.DeleteNotification(p.Notifications, logg))
		})
	})

	return r
}
