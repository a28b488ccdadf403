package app

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// HealthChecker pings the stores the sync pipeline depends on and reports
// per-component status.
type HealthChecker struct {
	infra Infrastructure
}

func NewHealthChecker(infra Infrastructure) *HealthChecker {
	return &HealthChecker{
		infra: infra,
	}
}

type componentCheck struct {
	name string
	ping func(context.Context) error
}

func (h *HealthChecker) check(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	checks := []componentCheck{
		{name: "postgres", ping: h.infra.Postgres().Ping},
		{name: "redis", ping: h.infra.Redis().Ping},
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	statuses := make(map[string]string, len(checks))

	for _, c := range checks {
		wg.Add(1)
		go func(c componentCheck) {
			defer wg.Done()
			status := "pass"
			if err := c.ping(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			statuses[c.name] = status
			mu.Unlock()
		}(c)
	}
	wg.Wait()

	return statuses
}

func (h *HealthChecker) Handler(c *gin.Context) {
	statuses := h.check(c.Request.Context())

	healthy := true
	for _, status := range statuses {
		if status != "pass" {
			healthy = false
			break
		}
	}

	code := http.StatusOK
	overall := "pass"
	if !healthy {
		code = http.StatusServiceUnavailable
		overall = "fail"
	}

	c.JSON(code, gin.H{
		"status":     overall,
		"components": statuses,
	})
}
