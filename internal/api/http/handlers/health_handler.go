package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/hitl-service/internal/config"
	"github.com/spec-kit/hitl-service/internal/persistence"
)

// HealthHandler responds to liveness/readiness probes and the
// diagnostics report.
type HealthHandler struct {
	serviceName string
	version     string
	cfg         *config.Config
	postgres    *persistence.Postgres
	redis       *persistence.Redis
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, cfg *config.Config, postgres *persistence.Postgres, redis *persistence.Redis) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		cfg:         cfg,
		postgres:    postgres,
		redis:       redis,
	}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports service readiness by checking dependencies.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true

	if err := h.postgres.Ping(ctx); err != nil {
		depStatus["postgres"] = err.Error()
		ready = false
	} else {
		depStatus["postgres"] = "ok"
	}

	if err := h.redis.Ping(ctx); err != nil {
		depStatus["redis"] = err.Error()
		ready = false
	} else {
		depStatus["redis"] = "ok"
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}

// Diagnostics GET /api/diagnostics. Reports configuration presence and
// collaborator reachability for operational use; never consumed by the
// core logic.
func (h *HealthHandler) Diagnostics(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	env := fiber.Map{
		"POSTGRES_DSN":    h.cfg.Postgres.DSN != "",
		"REDIS_ADDR":      h.cfg.Redis.Addr != "",
		"HITL_API_KEY":    h.cfg.Auth.MachineAPIKey != "",
		"AUTH_JWT_SECRET": h.cfg.Auth.JWTSecret != "",
		"OPENAI_API_KEY":  h.cfg.AI.Configured(),
	}

	overall := "ok"

	dbConnected := false
	var dbError string
	if err := h.postgres.Ping(ctx); err != nil {
		dbError = err.Error()
		overall = "error"
	} else {
		dbConnected = true
	}

	redisConnected := false
	if err := h.redis.Ping(ctx); err != nil {
		if overall == "ok" {
			overall = "warn"
		}
	} else {
		redisConnected = true
	}

	if !h.cfg.AI.Configured() && overall == "ok" {
		overall = "warn"
	}

	database := fiber.Map{"connected": dbConnected}
	if dbError != "" {
		database["error"] = dbError
	}

	return c.JSON(fiber.Map{
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"env":            env,
		"database":       database,
		"redis":          fiber.Map{"connected": redisConnected},
		"ai":             fiber.Map{"configured": h.cfg.AI.Configured()},
		"overall_status": overall,
	})
}
