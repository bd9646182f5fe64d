package solver

import (
	"context"
	"time"

	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/metrics"
)

// Pool gates concurrent solver runs to bound CPU use. Requests beyond the
// worker count queue up to the wait budget, then fail as retryable busy.
type Pool struct {
	slots      chan struct{}
	waitBudget time.Duration
}

func NewPool(workers int, waitBudget time.Duration) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if waitBudget <= 0 {
		waitBudget = 2 * time.Second
	}
	return &Pool{
		slots:      make(chan struct{}, workers),
		waitBudget: waitBudget,
	}
}

// Run executes Solve inside a worker slot.
func (p *Pool) Run(ctx context.Context, in Input) (*Plan, error) {
	timer := time.NewTimer(p.waitBudget)
	defer timer.Stop()

	select {
	case p.slots <- struct{}{}:
	case <-timer.C:
		metrics.SolverQueueRejections.Inc()
		return nil, domain.E(domain.KindDependency, "solver_busy",
			"all solver workers are busy, retry shortly")
	case <-ctx.Done():
		return nil, domain.E(domain.KindCancelled, "", "request cancelled while queued")
	}
	defer func() { <-p.slots }()

	start := time.Now()
	plan := Solve(ctx, in)
	metrics.SolverDuration.Observe(time.Since(start).Seconds())
	metrics.SolverRunsTotal.WithLabelValues(string(plan.Status)).Inc()
	return plan, nil
}
