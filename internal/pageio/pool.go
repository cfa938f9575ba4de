package pageio

import (
	"github.com/hupe1980/lidisk/internal/mem"
	"github.com/hupe1980/lidisk/internal/resource"
)

// Pool is a worker-private arena of page-aligned bytes reused across
// fetches. It grows, and stays grown, when a fetch needs more pages than it
// holds.
type Pool struct {
	pageBytes int
	buf       []byte
	ctrl      *resource.Controller
	grown     int
}

// NewPool allocates pages pages of pageBytes each and reserves them with
// ctrl, which may be nil.
func NewPool(ctrl *resource.Controller, pages, pageBytes int) (*Pool, error) {
	if err := ctrl.AcquireMemory(int64(pages * pageBytes)); err != nil {
		return nil, err
	}
	return &Pool{
		pageBytes: pageBytes,
		buf:       mem.AllocPages(pages, pageBytes),
		ctrl:      ctrl,
	}, nil
}

// Pages returns an aligned buffer of n pages.
func (p *Pool) Pages(n int) ([]byte, error) {
	need := n * p.pageBytes
	if need > len(p.buf) {
		if err := p.ctrl.AcquireMemory(int64(need - len(p.buf))); err != nil {
			return nil, err
		}
		p.buf = mem.AllocPages(n, p.pageBytes)
		p.grown++
	}
	return p.buf[:need], nil
}

// Cap is the pool size in pages.
func (p *Pool) Cap() int { return len(p.buf) / p.pageBytes }

// Grown counts how often the pool had to grow.
func (p *Pool) Grown() int { return p.grown }

// Release returns the pool's reservation. The pool must not be used after.
func (p *Pool) Release() {
	p.ctrl.ReleaseMemory(int64(len(p.buf)))
	p.buf = nil
}
