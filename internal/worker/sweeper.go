package worker

import (
	"context"
	"log"
	"time"
)

type OrphanRecoverer interface {
	RecoverOrphans(ctx context.Context) (int, error)
}

// Sweeper periodically hands jobs of silent workers back to the queue
// (worker crashed or lost connectivity without reporting a terminal status).
type Sweeper struct {
	recoverer OrphanRecoverer
	interval  time.Duration
}

func NewSweeper(recoverer OrphanRecoverer, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{recoverer: recoverer, interval: interval}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	log.Printf("orphan sweeper started: interval=%s", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("orphan sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.recoverer.RecoverOrphans(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Printf("[sweeper] recover orphans error: %v", err)
	}
	if n > 0 {
		log.Printf("[sweeper] requeued %d orphaned jobs", n)
	}
}
