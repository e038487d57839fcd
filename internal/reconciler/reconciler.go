// Package reconciler keeps the orchestrator URL stored on every device identity in line with
// the URL the orchestrator is configured with. It runs on its own timer, independent of
// heartbeats, because a device that does not know where the orchestrator lives cannot send one.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"fleet-orchestrator/internal/identity"
	"fleet-orchestrator/internal/metrics"
)

// Directory is the identity store the reconciler patches (implementation: identity.RedisDirectory).
type Directory interface {
	QueryStale(ctx context.Context, desiredURL, token string, pageSize int) ([]identity.Record, string, error)
	SetDesiredURL(ctx context.Context, rec identity.Record, url string) error
}

// URLSource yields the current public orchestrator URL; it is read at the start of every sweep.
type URLSource interface {
	OrchestratorURL() string
}

type StopOutcome int

const (
	StopOk StopOutcome = iota
	StopIgnored
	StopFatal
)

func (o StopOutcome) String() string {
	switch o {
	case StopOk:
		return "ok"
	case StopIgnored:
		return "ignored"
	default:
		return "fatal"
	}
}

// ClassifyStop maps the error a sweep ended with to what the loop should make of it.
func ClassifyStop(err error) StopOutcome {
	switch {
	case err == nil:
		return StopOk
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StopIgnored
	case errors.Is(err, redis.ErrClosed):
		// go-redis reports a client closed under an in-flight call with the same error it uses
		// for a pool closed by mistake; while stopping it only means Close won the race.
		return StopIgnored
	}
	return StopFatal
}

type Config struct {
	Interval time.Duration
	PageSize int
}

type SweepResult struct {
	Updated int
	Failed  int
	Skipped bool
}

type EndpointReconciler struct {
	dir     Directory
	urls    URLSource
	metrics *metrics.Collector
	cfg     Config

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(dir Directory, urls URLSource, m *metrics.Collector, cfg Config) *EndpointReconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	return &EndpointReconciler{dir: dir, urls: urls, metrics: m, cfg: cfg}
}

// Start launches the sweep loop. Calling it while running does nothing.
func (r *EndpointReconciler) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(ctx, r.done)
	log.Printf("[reconciler] started interval=%s", r.cfg.Interval)
}

// Stop cancels the loop, including any sweep in flight, and waits for it to exit.
// Calling it while stopped does nothing.
func (r *EndpointReconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel = nil
	r.done = nil
	log.Printf("[reconciler] stopped")
}

func (r *EndpointReconciler) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

func (r *EndpointReconciler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	// each Start gets a fresh timer; the first sweep runs immediately
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		res, err := r.Sweep(ctx)
		switch ClassifyStop(err) {
		case StopOk:
			if res.Updated > 0 || res.Failed > 0 {
				log.Printf("[reconciler] sweep done updated=%d failed=%d", res.Updated, res.Failed)
			}
		case StopIgnored:
		case StopFatal:
			log.Printf("[reconciler] sweep error=%v", err)
		}
		if ctx.Err() != nil {
			return
		}
		timer.Reset(r.cfg.Interval)
	}
}

// Sweep walks every stale identity page by page and points it at the current URL.
// A failed record is logged and skipped. Cancellation stops the sweep at once and is
// returned as-is, never counted as a failure.
func (r *EndpointReconciler) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	desired := identity.NormalizeURL(r.urls.OrchestratorURL())
	if err := validateURL(desired); err != nil {
		log.Printf("[reconciler] sweep skipped: %v", err)
		res.Skipped = true
		r.metrics.RecordSweep("skipped")
		return res, nil
	}

	token := ""
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		records, next, err := r.dir.QueryStale(ctx, desired, token, r.cfg.PageSize)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			r.metrics.RecordSweep("failed")
			return res, fmt.Errorf("query identities: %w", err)
		}

		for _, rec := range records {
			err := r.dir.SetDesiredURL(ctx, rec, desired)
			if err == nil {
				res.Updated++
				r.metrics.RecordEndpointUpdate("updated")
				continue
			}
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Failed++
			r.metrics.RecordEndpointUpdate("failed")
			log.Printf("[reconciler] identity_id=%s update error=%v", rec.ID, err)
		}

		if next == "" {
			break
		}
		token = next
	}

	r.metrics.RecordSweep("ok")
	return res, nil
}

func validateURL(u string) error {
	if u == "" {
		return errors.New("orchestrator url not configured")
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return fmt.Errorf("invalid orchestrator url %q: %w", u, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("invalid orchestrator url %q", u)
	}
	return nil
}
