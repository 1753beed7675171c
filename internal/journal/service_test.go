package journal

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-desk/internal/config"
	"signal-desk/internal/order"
	"signal-desk/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.NewSQLite(config.DatabaseConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	svc, err := NewService(context.Background(), st, nil)
	require.NoError(t, err)
	return svc
}

func TestNewService_RequiresStore(t *testing.T) {
	_, err := NewService(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestService_RecordsSubmissionAndOutcome(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	sl := 1.0950
	svc.RecordSubmission(ctx, SubmissionPayload{
		ClientOrderID: "sd-1",
		Gateway:       "simulator",
		Request: order.Request{
			Symbol:   "EURUSD",
			Side:     order.SideBuy,
			Type:     order.TypeStop,
			Volume:   50,
			Price:    1.1,
			StopLoss: &sl,
		},
	})
	svc.RecordOutcome(ctx, OutcomePayload{ClientOrderID: "sd-1", ExchangeOrderID: "x-9", Status: "closed"})
	svc.RecordOutcome(ctx, OutcomePayload{ClientOrderID: "sd-2", Error: "insufficient margin"})

	all, err := svc.ListEvents(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, EventOrderRejected, all[0].Type)
	assert.Equal(t, EventOrderFilled, all[1].Type)
	assert.Equal(t, EventOrderSubmitted, all[2].Type)

	var sub SubmissionPayload
	require.NoError(t, json.Unmarshal(all[2].Payload.(json.RawMessage), &sub))
	assert.Equal(t, "EURUSD", sub.Request.Symbol)
	require.NotNil(t, sub.Request.StopLoss)
	assert.Equal(t, sl, *sub.Request.StopLoss)

	rejected, err := svc.ListEvents(ctx, EventOrderRejected, 10)
	require.NoError(t, err)
	require.Len(t, rejected, 1)

	var out OutcomePayload
	require.NoError(t, json.Unmarshal(rejected[0].Payload.(json.RawMessage), &out))
	assert.Equal(t, "insufficient margin", out.Error)

	history, err := svc.ListOrderEvents(ctx, "sd-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestService_RecordError(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	svc.RecordError(ctx, "行情获取失败", errors.New("timeout"), map[string]interface{}{"symbol": "XAUUSD"})

	events, err := svc.ListEvents(ctx, EventError, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)

	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(events[0].Payload.(json.RawMessage), &payload))
	assert.Equal(t, "timeout", payload.Error)
	assert.Equal(t, "XAUUSD", payload.Context["symbol"])
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestService_ListEventsRespectsLimit(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	for i := 0; i < 5; i++ {
		svc.RecordError(ctx, "boom", nil, nil)
	}

	events, err := svc.ListEvents(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Greater(t, events[0].ID, events[1].ID)
}
