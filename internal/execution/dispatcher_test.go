package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"signal-desk/internal/order"
)

type blockingGateway struct {
	release chan struct{}
	err     error
}

func (g *blockingGateway) Name() string { return "blocking" }

func (g *blockingGateway) SubmitOrder(ctx context.Context, clientOrderID string, req order.Request) (Confirmation, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return Confirmation{}, ctx.Err()
	}
	if g.err != nil {
		return Confirmation{}, g.err
	}
	return Confirmation{ClientOrderID: clientOrderID, Status: "filled"}, nil
}

type panicGateway struct{}

func (panicGateway) Name() string { return "panic" }

func (panicGateway) SubmitOrder(context.Context, string, order.Request) (Confirmation, error) {
	panic("driver crashed")
}

func TestDispatcherSubmit_ReturnsBeforeGatewayCompletes(t *testing.T) {
	gw := &blockingGateway{release: make(chan struct{})}
	d := NewDispatcher(gw, time.Second, nil)

	id, out := d.Submit(context.Background(), makeBaseRequest())
	if id == "" {
		t.Fatal("expected client order id")
	}

	select {
	case <-out:
		t.Fatal("outcome delivered before gateway returned")
	default:
	}

	close(gw.release)
	outcome, ok := <-out
	if !ok {
		t.Fatal("channel closed without outcome")
	}
	if outcome.Err != nil {
		t.Fatalf("unexpected error: %v", outcome.Err)
	}
	if outcome.ClientOrderID != id || outcome.Confirmation.ClientOrderID != id {
		t.Errorf("client order id mismatch: %s vs %+v", id, outcome)
	}
	if _, ok := <-out; ok {
		t.Error("expected channel to be closed after single outcome")
	}
	d.Wait()
}

func TestDispatcherSubmit_PassesGatewayErrorUnchanged(t *testing.T) {
	boom := errors.New("market closed")
	gw := &blockingGateway{release: make(chan struct{}), err: boom}
	close(gw.release)

	d := NewDispatcher(gw, time.Second, nil)
	_, out := d.Submit(context.Background(), makeBaseRequest())

	outcome := <-out
	if !errors.Is(outcome.Err, boom) {
		t.Fatalf("expected gateway error, got %v", outcome.Err)
	}
	if outcome.Request.Symbol != "XAUUSD" {
		t.Errorf("expected request echoed in outcome, got %+v", outcome.Request)
	}
}

func TestDispatcherSubmit_TimesOut(t *testing.T) {
	gw := &blockingGateway{release: make(chan struct{})}
	d := NewDispatcher(gw, 10*time.Millisecond, nil)

	_, out := d.Submit(context.Background(), makeBaseRequest())
	outcome := <-out
	if !errors.Is(outcome.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", outcome.Err)
	}
}

func TestDispatcherSubmit_RecoversGatewayPanic(t *testing.T) {
	d := NewDispatcher(panicGateway{}, time.Second, nil)

	_, out := d.Submit(context.Background(), makeBaseRequest())
	outcome := <-out
	if outcome.Err == nil {
		t.Fatal("expected error from panicking gateway")
	}
}

func TestSimulator_FillsAtRequestPrice(t *testing.T) {
	sim := NewSimulator(nil)

	conf, err := sim.SubmitOrder(context.Background(), "cid-9", makeBaseRequest())
	if err != nil {
		t.Fatalf("SubmitOrder returned error: %v", err)
	}
	if !conf.Simulated || conf.Status != "filled" || conf.Price != 2020 || conf.Volume != 0.5 {
		t.Errorf("unexpected confirmation %+v", conf)
	}

	bad := makeBaseRequest()
	bad.Volume = -1
	if _, err := sim.SubmitOrder(context.Background(), "cid-10", bad); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}
