package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/thermostat/internal/logger"
	"github.com/sweeney/thermostat/internal/logic"
)

func submitEventually(t *testing.T, w *Worker, r Report) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !w.Submit(r) {
		if time.Now().After(deadline) {
			t.Fatal("worker never accepted report")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWorkerDeliversResults(t *testing.T) {
	ex := NewFakeExchanger(Response{OK: true, Setpoint: Float(21)})
	w := NewWorker(ex, func() time.Time { return t0 }, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	submitEventually(t, w, Report{Reading: logic.ReadingOf(18), Heater: logic.StateOn})

	select {
	case res := <-w.Results():
		if !res.OK() || *res.Response.Setpoint != 21 || !res.At.Equal(t0) {
			t.Errorf("result: %+v", res)
		}
		if res.Report.Heater != logic.StateOn {
			t.Errorf("report not echoed: %+v", res.Report)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no result")
	}
}

func TestWorkerReportsErrors(t *testing.T) {
	ex := NewFakeExchanger()
	ex.SetErr(errors.New("connection refused"))
	w := NewWorker(ex, time.Now, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	submitEventually(t, w, Report{Heater: logic.StateOff})
	res := <-w.Results()
	if res.OK() || res.Err == nil {
		t.Errorf("expected failed result, got %+v", res)
	}
}

// blockingExchanger blocks until released, to observe the in-flight state.
type blockingExchanger struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingExchanger) Exchange(ctx context.Context, r Report) (Response, error) {
	b.started <- struct{}{}
	select {
	case <-b.release:
		return Response{OK: true}, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

func TestWorkerSkipsWhileBusy(t *testing.T) {
	ex := &blockingExchanger{started: make(chan struct{}, 1), release: make(chan struct{})}
	w := NewWorker(ex, time.Now, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	submitEventually(t, w, Report{Heater: logic.StateOff})
	<-ex.started

	if w.Submit(Report{Heater: logic.StateOn}) {
		t.Error("submit should be refused while an exchange is in flight")
	}
	close(ex.release)
	<-w.Results()
}

func TestWorkerStopsOnCancel(t *testing.T) {
	w := NewWorker(NewFakeExchanger(), time.Now, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestInlineWorker(t *testing.T) {
	ex := NewFakeExchanger(Response{OK: false})
	w := NewInlineWorker(ex, func() time.Time { return t0 })

	if !w.Submit(Report{Heater: logic.StateOff}) {
		t.Fatal("inline submit refused")
	}
	res := <-w.Results()
	if !errors.Is(res.Err, ErrNotOK) {
		t.Errorf("expected ErrNotOK, got %v", res.Err)
	}

	w.Busy = true
	if w.Submit(Report{}) {
		t.Error("busy inline worker accepted work")
	}
}
