package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/store"
)

// GatewayProbe reports whether the messaging gateway connection is up.
type GatewayProbe func() bool

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	tickets     *store.TicketStore
	metrics     *observability.Metrics
	redis       *persistence.Redis
	gateway     GatewayProbe
}

// NewHealthHandler returns a new handler instance. redis may be nil when the
// cooldown guard runs in-process.
func NewHealthHandler(serviceName, version string, tickets *store.TicketStore, metrics *observability.Metrics, redis *persistence.Redis, gateway GatewayProbe) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		tickets:     tickets,
		metrics:     metrics,
		redis:       redis,
		gateway:     gateway,
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

// Ready reports service readiness by checking dependencies, and exposes the
// lifecycle counters for operators.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true

	if h.gateway != nil {
		if h.gateway() {
			depStatus["gateway"] = "ok"
		} else {
			depStatus["gateway"] = "disconnected"
			ready = false
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			depStatus["redis"] = err.Error()
			ready = false
		} else {
			depStatus["redis"] = "ok"
		}
	}

	body := fiber.Map{
		"dependencies": depStatus,
		"tickets_open": h.tickets.Len(),
		"counters":     h.metrics.Snapshot(),
	}

	if ready {
		body["status"] = "ready"
		return c.JSON(body)
	}

	body["status"] = "degraded"
	return c.Status(fiber.StatusServiceUnavailable).JSON(body)
}
