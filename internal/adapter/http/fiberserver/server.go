// Package fiberserver exposes the coordinator over HTTP: health and
// metrics endpoints plus the POST /v1/runs driver surface.
package fiberserver

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/evfleetops/alloc-core/internal/adapter/http/fiber/middleware"
	"github.com/evfleetops/alloc-core/internal/coordinator"
	"github.com/evfleetops/alloc-core/internal/domain"
	"github.com/evfleetops/alloc-core/internal/observability/telemetry"
	"github.com/evfleetops/alloc-core/pkg/config"
)

// Server wraps a fiber.App wired to one Coordinator.
type Server struct {
	app *fiber.App
}

func New(coord *coordinator.Coordinator, cfg config.CORSConfig, log *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "alloc-core",
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(middleware.NewCORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		telemetry.RecordHTTPRequest(c.Method(), c.Route().Path, c.Response().StatusCode(), time.Since(start).Seconds())
		return err
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())(c.Context())
		return nil
	})
	app.Post("/v1/runs", postRun(coord, log))

	return &Server{app: app}
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// runRequest is the wire shape of POST /v1/runs, mirroring the CLI's
// flag set so both surfaces drive the same RunParams.
type runRequest struct {
	SiteID              string  `json:"site_id"`
	StartTime           string  `json:"start_time"`
	WindowHours         int     `json:"window_hours"`
	Mode                string  `json:"mode"`
	AllocationWeight    float64 `json:"allocation_weight"`
	SchedulingWeight    float64 `json:"scheduling_weight"`
	TargetSOCPercent    float64 `json:"target_soc_percent"`
	SiteCapacityKW      float64 `json:"site_capacity_kw"`
	AllocationTimeLimit int     `json:"allocation_time_limit_seconds"`
	SchedulingTimeLimit int     `json:"scheduling_time_limit_seconds"`
	IntegratedTimeLimit int     `json:"integrated_time_limit_seconds"`
}

func postRun(coord *coordinator.Coordinator, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req runRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
		}
		if req.SiteID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "site_id is required")
		}

		start, err := time.Parse(time.RFC3339, req.StartTime)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "start_time must be RFC3339: "+err.Error())
		}

		mode := domain.CoordinatorMode(req.Mode)
		switch mode {
		case domain.ModeAllocationOnly, domain.ModeSchedulingOnly, domain.ModeIntegrated:
		default:
			return fiber.NewError(fiber.StatusBadRequest, "mode must be allocation_only, scheduling_only, or integrated")
		}

		runID := c.Get("X-Request-ID")
		if runID == "" {
			runID = req.SiteID + "-" + start.Format(time.RFC3339)
		}

		result, err := coord.Run(c.Context(), runID, coordinator.RunParams{
			SiteID:              req.SiteID,
			StartTime:           start,
			WindowHours:         req.WindowHours,
			Mode:                mode,
			AllocationWeight:    req.AllocationWeight,
			SchedulingWeight:    req.SchedulingWeight,
			TargetSOCPercent:    req.TargetSOCPercent,
			SiteCapacityKW:      req.SiteCapacityKW,
			AllocationTimeLimit: time.Duration(req.AllocationTimeLimit) * time.Second,
			SchedulingTimeLimit: time.Duration(req.SchedulingTimeLimit) * time.Second,
			IntegratedTimeLimit: time.Duration(req.IntegratedTimeLimit) * time.Second,
		})
		if err != nil {
			log.Error("run failed", zap.String("run_id", runID), zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		status := fiber.StatusOK
		if result.SolverStatus == domain.SolverStatusInfeasible {
			status = fiber.StatusUnprocessableEntity
		}
		return c.Status(status).JSON(result)
	}
}
