package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/mvharris/tabwire/api/responses"
	"github.com/mvharris/tabwire/pkg/config"
	"github.com/mvharris/tabwire/pkg/db"
	pkgerrors "github.com/mvharris/tabwire/pkg/errors"
	"github.com/mvharris/tabwire/pkg/logger"
	pkgredis "github.com/mvharris/tabwire/pkg/redis"
)

const readinessTimeout = 5 * time.Second

type contextPinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Tabwire-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP pkgredis.Pinger, pubsubP contextPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Tabwire-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		checks["database"] = pingStatus(ctx, dbP)
		checks["redis"] = pingStatus(ctx, redisP)
		checks["pubsub"] = pingStatus(ctx, pubsubP)
		for _, status := range checks {
			if status != "ok" && status != "skipped" {
				healthy = false
			}
		}

		if !healthy {
			err := pkgerrors.New(pkgerrors.CodeDependency, "dependency not ready").
				WithDetails(map[string]any{"checks": checks})
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}

func pingStatus(ctx context.Context, p contextPinger) string {
	if p == nil {
		return "skipped"
	}
	if err := p.Ping(ctx); err != nil {
		return err.Error()
	}
	return "ok"
}
