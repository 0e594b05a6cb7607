package crypto

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"

	"github.com/AlibekovAA/authcore/internal/observability/metrics"
)

// HashPool bounds how many hash computations run at once. Callers beyond
// the bound wait for a slot or give up when their context ends.
type HashPool struct {
	inner   PasswordHasher
	sem     *semaphore.Weighted
	workers int64
}

func NewHashPool(inner PasswordHasher, workers int64) *HashPool {
	if workers <= 0 {
		workers = int64(runtime.GOMAXPROCS(0))
	}
	return &HashPool{
		inner:   inner,
		sem:     semaphore.NewWeighted(workers),
		workers: workers,
	}
}

func (p *HashPool) Workers() int64 {
	return p.workers
}

func (p *HashPool) Hash(ctx context.Context, password string) (string, error) {
	if err := p.acquire(ctx); err != nil {
		return "", err
	}
	defer p.release()
	return p.inner.Hash(ctx, password)
}

func (p *HashPool) Compare(ctx context.Context, encodedHash, password string) error {
	if err := p.acquire(ctx); err != nil {
		return err
	}
	defer p.release()
	return p.inner.Compare(ctx, encodedHash, password)
}

func (p *HashPool) acquire(ctx context.Context) error {
	metrics.HashPoolWaiting.Inc()
	err := p.sem.Acquire(ctx, 1)
	metrics.HashPoolWaiting.Dec()
	if err != nil {
		return err
	}
	metrics.HashPoolInUse.Inc()
	return nil
}

func (p *HashPool) release() {
	metrics.HashPoolInUse.Dec()
	p.sem.Release(1)
}
