package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mvharris/tabwire/api/controllers"
	"github.com/mvharris/tabwire/api/middleware"
	"github.com/mvharris/tabwire/internal/cards"
	"github.com/mvharris/tabwire/internal/orders"
	"github.com/mvharris/tabwire/pkg/config"
	"github.com/mvharris/tabwire/pkg/db"
	"github.com/mvharris/tabwire/pkg/logger"
	"github.com/mvharris/tabwire/pkg/redis"
)

type pubsubPinger interface {
	Ping(ctx context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	pubsubClient pubsubPinger,
	ordersSvc orders.Service,
	cardsSvc cards.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient, pubsubClient))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/v1/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(ordersSvc, logg))
			r.Get("/", controllers.OrderList(ordersSvc, logg))
			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", controllers.OrderDetail(ordersSvc, logg))
				r.Post("/items", controllers.OrderAppendItems(ordersSvc, logg))
				r.Post("/send", controllers.OrderSend(ordersSvc, logg))
				r.Post("/discount", controllers.OrderDiscount(ordersSvc, logg))
				r.Post("/comp-void", controllers.OrderCompVoid(ordersSvc, logg))
				r.Post("/pay", controllers.OrderPay(ordersSvc, logg))

				r.Route("/splits", func(r chi.Router) {
					r.Post("/", controllers.SplitCreateCheck(ordersSvc, logg))
					r.Post("/even", controllers.SplitEven(ordersSvc, logg))
					r.Post("/pay-all", controllers.SplitPayAll(ordersSvc, logg))
				})

				r.Route("/cards", func(r chi.Router) {
					r.Post("/", controllers.CardVault(cardsSvc, logg))
					r.Get("/", controllers.CardList(cardsSvc, logg))
					r.Post("/increase", controllers.CardIncrease(cardsSvc, logg))
				})
			})
		})
	})

	return r
}
