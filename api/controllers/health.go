package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/clubline/clubline-backend/api/responses"
	"github.com/clubline/clubline-backend/pkg/config"
	"github.com/clubline/clubline-backend/pkg/db"
	pkgerrors "github.com/clubline/clubline-backend/pkg/errors"
	"github.com/clubline/clubline-backend/pkg/logger"
	"github.com/clubline/clubline-backend/pkg/redis"
)

const readyCheckTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Clubline-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when the database and redis answer a ping.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Clubline-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		checks["db"] = pingStatus(pingDependency(ctx, dbP))
		if checks["db"] != "ok" {
			healthy = false
		}
		checks["redis"] = pingStatus(pingDependency(ctx, redisP))
		if checks["redis"] != "ok" {
			healthy = false
		}

		if !healthy {
			if logg != nil {
				logCtx := logg.WithFields(r.Context(), map[string]any{"checks": checks})
				logg.Warn(logCtx, "health.ready.degraded")
			}
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(checks))
			return
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

func pingDependency(ctx context.Context, p pinger) error {
	if p == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "not configured")
	}
	return p.Ping(ctx)
}

func pingStatus(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}
