package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a reservation would exceed the limit.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits. Zero values mean unlimited.
type Config struct {
	// MemoryLimitBytes caps the bytes held by page pools across all workers.
	MemoryLimitBytes int64

	// IOLimitPagesPerSec caps the page fetch rate across all workers.
	IOLimitPagesPerSec float64

	// IOBurstPages is the token bucket depth. Defaults to one second of
	// IOLimitPagesPerSec.
	IOBurstPages int
}

// Controller enforces Config.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	ioLimiter *rate.Limiter
	ioWaited  atomic.Int64
}

// NewController creates a controller for cfg.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.IOLimitPagesPerSec > 0 {
		if cfg.IOBurstPages <= 0 {
			cfg.IOBurstPages = max(int(cfg.IOLimitPagesPerSec), 1)
		}
		c.cfg.IOBurstPages = cfg.IOBurstPages
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitPagesPerSec), cfg.IOBurstPages)
	}

	return c
}

// AcquireMemory reserves bytes without blocking.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return ErrMemoryLimitExceeded
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory returns a reservation.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquirePages waits until the rate limit admits n page fetches. Requests
// larger than the burst are admitted in burst-sized installments.
func (c *Controller) AcquirePages(ctx context.Context, n int) error {
	if c == nil || c.ioLimiter == nil || n <= 0 {
		return nil
	}

	start := time.Now()
	defer func() { c.ioWaited.Add(int64(time.Since(start))) }()

	burst := c.cfg.IOBurstPages
	for n > 0 {
		step := min(n, burst)
		if err := c.ioLimiter.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

// TryAcquirePages admits n page fetches without blocking.
func (c *Controller) TryAcquirePages(n int) bool {
	if c == nil || c.ioLimiter == nil {
		return true
	}
	return c.ioLimiter.AllowN(time.Now(), n)
}

// ThrottledNs is the total time callers spent waiting in AcquirePages.
func (c *Controller) ThrottledNs() int64 {
	if c == nil {
		return 0
	}
	return c.ioWaited.Load()
}
