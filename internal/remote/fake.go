package remote

import (
	"context"
	"sync"
	"time"
)

// FakeExchanger returns scripted responses and records reports.
type FakeExchanger struct {
	mu sync.Mutex

	// Responses are returned in order; the last repeats once exhausted.
	Responses []Response
	// Err, if set, is returned instead of a response.
	Err error

	Reports []Report
	index   int
}

// NewFakeExchanger creates an exchanger answering with responses.
func NewFakeExchanger(responses ...Response) *FakeExchanger {
	return &FakeExchanger{Responses: responses}
}

func (f *FakeExchanger) Exchange(ctx context.Context, r Report) (Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reports = append(f.Reports, r)
	if f.Err != nil {
		return Response{}, f.Err
	}
	if len(f.Responses) == 0 {
		return Response{OK: true}, nil
	}
	resp := f.Responses[f.index]
	if f.index < len(f.Responses)-1 {
		f.index++
	}
	if !resp.OK {
		return resp, ErrNotOK
	}
	return resp, nil
}

// SetErr replaces the scripted error.
func (f *FakeExchanger) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Err = err
}

// ReportCount returns the number of exchanges made.
func (f *FakeExchanger) ReportCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Reports)
}

// Float returns a pointer to v, for building responses.
func Float(v float64) *float64 {
	return &v
}

// InlineWorker runs each exchange synchronously inside Submit, so tests can
// drive the control loop without a goroutine.
type InlineWorker struct {
	ex      Exchanger
	now     func() time.Time
	results chan Result

	// Busy makes Submit refuse work, as if an exchange were in flight.
	Busy bool
}

// NewInlineWorker creates an InlineWorker.
func NewInlineWorker(ex Exchanger, now func() time.Time) *InlineWorker {
	return &InlineWorker{ex: ex, now: now, results: make(chan Result, 16)}
}

func (w *InlineWorker) Submit(r Report) bool {
	if w.Busy {
		return false
	}
	resp, err := w.ex.Exchange(context.Background(), r)
	w.results <- Result{At: w.now(), Report: r, Response: resp, Err: err}
	return true
}

func (w *InlineWorker) Results() <-chan Result {
	return w.results
}
