package remote

import (
	"context"
	"time"

	"github.com/sweeney/thermostat/internal/logger"
)

// Result is the outcome of one exchange.
type Result struct {
	At       time.Time
	Report   Report
	Response Response
	Err      error
}

// OK reports whether the exchange succeeded with "ok": true.
func (r Result) OK() bool {
	return r.Err == nil && r.Response.OK
}

// Worker runs exchanges off the control goroutine. At most one exchange is
// in flight; the loop hands over reports with Submit and collects results
// from Results.
type Worker struct {
	ex      Exchanger
	now     func() time.Time
	log     *logger.Logger
	reqs    chan Report
	results chan Result
}

// NewWorker creates a worker. Call Run to start it.
func NewWorker(ex Exchanger, now func() time.Time, log *logger.Logger) *Worker {
	return &Worker{
		ex:      ex,
		now:     now,
		log:     log,
		reqs:    make(chan Report),
		results: make(chan Result, 1),
	}
}

// Submit hands r to the worker without blocking. It returns false while an
// exchange is in flight.
func (w *Worker) Submit(r Report) bool {
	select {
	case w.reqs <- r:
		return true
	default:
		return false
	}
}

// Results delivers one Result per accepted Submit.
func (w *Worker) Results() <-chan Result {
	return w.results
}

// Run processes reports until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-w.reqs:
			resp, err := w.ex.Exchange(ctx, r)
			if err != nil {
				w.log.Warnw("remote exchange failed", "err", err)
			}
			res := Result{At: w.now(), Report: r, Response: resp, Err: err}
			select {
			case w.results <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}
