package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"resumable-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Status represents the health status of a component
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Component is the last observed state of one dependency.
type Component struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Description string    `json:"description,omitempty"`
	Error       string    `json:"error,omitempty"`
	LastChecked time.Time `json:"last_checked"`
	critical    bool
}

// Check probes one dependency.
type Check func(ctx context.Context) (Status, string, error)

type entry struct {
	check    Check
	critical bool
}

// Checker runs registered checks periodically and serves the results over
// HTTP and the gRPC health protocol.
type Checker struct {
	log     *logger.Logger
	period  time.Duration
	timeout time.Duration
	grpc    *health.Server

	mu         sync.RWMutex
	checks     map[string]entry
	components map[string]*Component
}

// NewChecker re-runs checks every period, 30s when period is not positive.
func NewChecker(log *logger.Logger, period time.Duration) *Checker {
	if period <= 0 {
		period = 30 * time.Second
	}
	return &Checker{
		log:        log,
		period:     period,
		timeout:    3 * time.Second,
		grpc:       health.NewServer(),
		checks:     make(map[string]entry),
		components: make(map[string]*Component),
	}
}

// RegisterCheck adds a check. A failing critical check makes the whole
// service unhealthy.
func (c *Checker) RegisterCheck(name string, critical bool, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = entry{check: check, critical: critical}
	c.components[name] = &Component{Name: name, Status: StatusDown, Description: "not checked yet", critical: critical}
}

// RegisterPing registers a critical check backed by a ping function.
func (c *Checker) RegisterPing(name string, ping func(ctx context.Context) error) {
	c.RegisterCheck(name, true, func(ctx context.Context) (Status, string, error) {
		if err := ping(ctx); err != nil {
			return StatusDown, name + " unreachable", err
		}
		return StatusUp, name + " reachable", nil
	})
}

// RunChecks executes every check once.
func (c *Checker) RunChecks(ctx context.Context) {
	c.mu.RLock()
	checks := make(map[string]entry, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mu.RUnlock()

	for name, e := range checks {
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		status, desc, err := e.check(cctx)
		cancel()

		comp := &Component{Name: name, Status: status, Description: desc, LastChecked: time.Now(), critical: e.critical}
		if err != nil {
			comp.Error = err.Error()
			c.log.Warn("health check failed", "component", name, "status", string(status), "error", err.Error())
		}

		c.mu.Lock()
		c.components[name] = comp
		c.mu.Unlock()
		c.grpc.SetServingStatus(name, servingStatus(status))
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if !c.Healthy() {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	c.grpc.SetServingStatus("", overall)
}

func servingStatus(s Status) healthpb.HealthCheckResponse_ServingStatus {
	if s == StatusDown {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}

// Start runs checks now and then every period until ctx ends.
func (c *Checker) Start(ctx context.Context) {
	go func() {
		c.RunChecks(ctx)
		ticker := time.NewTicker(c.period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				c.grpc.Shutdown()
				return
			case <-ticker.C:
				c.RunChecks(ctx)
			}
		}
	}()
}

// Components returns a copy of the latest results.
func (c *Checker) Components() map[string]Component {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Component, len(c.components))
	for k, v := range c.components {
		out[k] = *v
	}
	return out
}

// Healthy is false when any critical component is down.
func (c *Checker) Healthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, comp := range c.components {
		if comp.critical && comp.Status == StatusDown {
			return false
		}
	}
	return true
}

// GRPCServer exposes the results through grpc.health.v1.
func (c *Checker) GRPCServer() *health.Server { return c.grpc }

// Handler serves the latest results as JSON.
func (c *Checker) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		code, status := http.StatusOK, "ok"
		if !c.Healthy() {
			code, status = http.StatusServiceUnavailable, "unavailable"
		}
		ctx.JSON(code, gin.H{
			"status":     status,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"components": c.Components(),
		})
	}
}
