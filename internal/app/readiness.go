package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/procuredocs/procuredocs/internal/platform/httpx"
)

// Check is one dependency pinged by the readiness endpoint.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Readiness runs dependency checks concurrently.
type Readiness struct {
	checks  []Check
	timeout time.Duration
	logger  *slog.Logger
}

// NewReadiness builds the readiness handler over checks; entries without Ping are ignored.
func NewReadiness(logger *slog.Logger, timeout time.Duration, checks ...Check) *Readiness {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	filtered := make([]Check, 0, len(checks))
	for _, c := range checks {
		if c.Ping != nil {
			filtered = append(filtered, c)
		}
	}
	return &Readiness{checks: filtered, timeout: timeout, logger: logger}
}

// Run pings every dependency and returns the per-check status. Checks do not
// cancel each other; the error is the first failure observed.
func (r *Readiness) Run(ctx context.Context) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var mu sync.Mutex
	status := make(map[string]string, len(r.checks))
	var g errgroup.Group
	for _, c := range r.checks {
		g.Go(func() error {
			err := c.Ping(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				status[c.Name] = "down"
				return fmt.Errorf("%s: %w", c.Name, err)
			}
			status[c.Name] = "up"
			return nil
		})
	}
	err := g.Wait()
	return status, err
}

type readinessBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ServeHTTP answers 200 when every dependency is reachable and 503 otherwise.
func (r *Readiness) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	checks, err := r.Run(req.Context())
	if err != nil {
		r.logger.Warn("readiness check failed", slog.Any("error", err))
		httpx.JSON(w, http.StatusServiceUnavailable, readinessBody{Status: "unavailable", Checks: checks})
		return
	}
	httpx.JSON(w, http.StatusOK, readinessBody{Status: "ok", Checks: checks})
}
