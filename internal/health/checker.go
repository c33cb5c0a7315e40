package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/raysnipe/sniper/internal/chain"
)

// Status is one component's most recent health observation.
type Status struct {
	Name    string
	Healthy bool
	Latency time.Duration
	Error   string
}

// Checker polls the RPC endpoint and the control API's own /health route on
// an interval, giving an operator one place to see both "can we still talk
// to the chain" and "is the bot's own HTTP surface responsive".
type Checker struct {
	mu          sync.RWMutex
	statuses    []Status
	rpc         *chain.RPCClient
	controlAPIURL string
}

// NewChecker constructs a Checker. controlAPIURL should point at the
// control API's own /health route (e.g. "http://127.0.0.1:8080/health").
func NewChecker(rpc *chain.RPCClient, controlAPIURL string) *Checker {
	return &Checker{
		rpc:           rpc,
		controlAPIURL: controlAPIURL,
	}
}

// Start begins periodic health checks, running one immediately.
func (c *Checker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.check(ctx)
			}
		}
	}()

	c.check(ctx)
}

func (c *Checker) check(ctx context.Context) {
	statuses := []Status{
		c.checkRPC(ctx),
		c.checkControlAPI(ctx),
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// checkRPC reuses the shared RPCClient so a failed health probe also counts
// toward its circuit breaker, rather than opening a side channel RPC the
// breaker never sees.
func (c *Checker) checkRPC(ctx context.Context) Status {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	_, err := c.rpc.GetLatestBlockhash(checkCtx)
	status := Status{
		Name:    "rpc",
		Latency: time.Since(start),
		Healthy: err == nil,
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}

func (c *Checker) checkControlAPI(ctx context.Context) Status {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, c.controlAPIURL, nil)
	if err != nil {
		return Status{Name: "control_api", Error: err.Error()}
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	latency := time.Since(start)

	status := Status{Name: "control_api", Latency: latency, Healthy: err == nil}
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer resp.Body.Close()
	status.Healthy = resp.StatusCode == http.StatusOK
	return status
}

// GetStatuses returns the most recent snapshot of all checked components.
func (c *Checker) GetStatuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.statuses
}
