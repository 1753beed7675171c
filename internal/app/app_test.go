package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-desk/internal/config"
	"signal-desk/internal/desk"
	"signal-desk/internal/execution"
	"signal-desk/internal/instruction"
	"signal-desk/internal/journal"
	"signal-desk/internal/order"
	"signal-desk/internal/overlay"
	"signal-desk/internal/store"
)

const goldSignal = "Sell XAUUSD @1900-1895 SL:1880 Targets: 1870-1860-1850"

func testConfig() *config.Config {
	return &config.Config{
		App:    config.AppConfig{Environment: "test"},
		Server: config.ServerConfig{Port: 8080, ReadTimeout: time.Second, WriteTimeout: time.Second},
		Risk: config.RiskConfig{
			AccountBalance: 10000,
			RiskPercent:    1,
			Leverage:       100,
			MaxLeverage:    1500,
			BalanceSource:  config.BalanceSourceStatic,
		},
		Gateway: config.GatewayConfig{
			Simulation:    true,
			SubmitTimeout: time.Second,
		},
		Database: config.DatabaseConfig{InMemory: true},
	}
}

type stubPrices struct {
	price float64
	err   error
	calls int
}

func (s *stubPrices) MarketPrice(context.Context, string) (float64, error) {
	s.calls++
	return s.price, s.err
}

type failingGateway struct{ err error }

func (g failingGateway) Name() string { return "failing" }

func (g failingGateway) SubmitOrder(context.Context, string, order.Request) (execution.Confirmation, error) {
	return execution.Confirmation{}, g.err
}

func newTestApp(t *testing.T, opts ...Option) *App {
	t.Helper()
	st, err := store.NewSQLite(config.DatabaseConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	a, err := New(context.Background(), testConfig(), nil, st, opts...)
	require.NoError(t, err)
	return a
}

func post(t *testing.T, h http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw)))
	return rec
}

func getOrderState(t *testing.T, a *App, id string) desk.State {
	t.Helper()
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/orders/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var state desk.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	return state
}

func TestParseEndpoint(t *testing.T) {
	a := newTestApp(t)

	rec := post(t, a.Handler(), "/v1/parse", map[string]string{"text": goldSignal})
	require.Equal(t, http.StatusOK, rec.Code)

	var parsed instruction.Parsed
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	assert.Equal(t, "XAUUSD", parsed.Symbol)
	assert.Equal(t, instruction.DirectionSell, parsed.Direction)
	assert.Equal(t, []float64{1870, 1860, 1850}, parsed.Targets)
}

func TestParseEndpoint_RejectsBadJSON(t *testing.T) {
	a := newTestApp(t)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/parse", bytes.NewBufferString("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSizingEndpoint_GoldExample(t *testing.T) {
	a := newTestApp(t)

	rec := post(t, a.Handler(), "/v1/sizing", map[string]string{"text": goldSignal})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Stage  desk.Stage `json:"stage"`
		Sizing struct {
			MaxPositionSizeText string `json:"max_position_size_text"`
			RiskAmountText      string `json:"risk_amount_text"`
		} `json:"sizing"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, desk.StageSized, body.Stage)
	assert.Equal(t, "50.00", body.Sizing.MaxPositionSizeText)
	assert.Equal(t, "100.00", body.Sizing.RiskAmountText)
}

func TestSizingEndpoint_RiskOverride(t *testing.T) {
	a := newTestApp(t)

	balance := 20000.0
	rec := post(t, a.Handler(), "/v1/sizing", map[string]interface{}{
		"text": goldSignal,
		"risk": RiskInput{AccountBalance: &balance},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"max_position_size_text":"100.00"`)
}

func TestEvaluate_FetchesMarketPriceWithoutEntry(t *testing.T) {
	prices := &stubPrices{price: 1.1000}
	a := newTestApp(t, WithPriceSource(prices))

	state := a.Evaluate(context.Background(), "buy EURUSD SL 1.0950 TP 1.1100", nil)
	require.Equal(t, 1, prices.calls)
	assert.Equal(t, 1.1, state.Risk.MarketPrice)
	require.NotNil(t, state.Draft)
	assert.Equal(t, order.TypeStop, state.Draft.Type)
	assert.Equal(t, 1.1, state.Draft.Price)

	withEntry := a.Evaluate(context.Background(), goldSignal, nil)
	assert.Equal(t, 1, prices.calls, "entry present, no price lookup")
	assert.Equal(t, desk.StageSized, withEntry.Stage)
}

func TestEvaluate_PriceFailureLeavesSizingGuarded(t *testing.T) {
	a := newTestApp(t, WithPriceSource(&stubPrices{err: errors.New("offline")}))

	state := a.Evaluate(context.Background(), "buy EURUSD SL 1.0950", nil)
	assert.Equal(t, desk.StageParsed, state.Stage)
	assert.Nil(t, state.Draft)
}

func TestOverlayEndpoint_RendersToHub(t *testing.T) {
	a := newTestApp(t)

	rec := post(t, a.Handler(), "/v1/overlay", map[string]string{"text": goldSignal})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Markers []overlay.Marker `json:"markers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Markers, 5)
	assert.Equal(t, overlay.ColorEntrySell, body.Markers[0].ColorClass)
	assert.Equal(t, "TP3", body.Markers[4].Label)

	// 没有图表连接时绘制被延后
	assert.Empty(t, a.Hub().Markers())
}

func TestPreviewEndpoint(t *testing.T) {
	a := newTestApp(t)

	rec := post(t, a.Handler(), "/v1/orders/preview", map[string]string{"text": goldSignal})
	require.Equal(t, http.StatusOK, rec.Code)

	var req order.Request
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &req))
	assert.Equal(t, order.TypeLimit, req.Type)
	assert.Equal(t, order.SideSell, req.Side)
	assert.Equal(t, 50.0, req.Volume)
	assert.Equal(t, 1900.0, req.Price)
	assert.Equal(t, "Auto order with 3 TP levels", req.Comment)
	require.NotNil(t, req.TakeProfit)
	assert.Equal(t, 1870.0, *req.TakeProfit)
}

func TestPreviewEndpoint_VolumeOverrideAndGuards(t *testing.T) {
	a := newTestApp(t)

	volume := 0.25
	rec := post(t, a.Handler(), "/v1/orders/preview", map[string]interface{}{"text": "buy EURUSD @1.1 tp 1.2", "volume": volume})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"volume":0.25`)

	rec = post(t, a.Handler(), "/v1/orders/preview", map[string]string{"text": "buy EURUSD @1.1 tp 1.2"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing_stop_loss")

	rec = post(t, a.Handler(), "/v1/orders/preview", map[string]string{"text": "@1.1 sl 1.0"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSubmitEndpoint_JournalsOutcome(t *testing.T) {
	a := newTestApp(t)

	rec := post(t, a.Handler(), "/v1/orders", map[string]string{"text": goldSignal})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ClientOrderID)
	assert.Equal(t, "simulator", resp.Gateway)
	assert.Equal(t, desk.StageSubmitted, resp.Stage)
	assert.Equal(t, 50.0, resp.Order.Volume)

	a.Wait()

	state := getOrderState(t, a, resp.ClientOrderID)
	assert.Equal(t, desk.StageSubmitted, state.Stage)
	assert.Equal(t, resp.ClientOrderID, state.OrderID)

	events, err := a.journal.ListOrderEvents(context.Background(), resp.ClientOrderID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, journal.EventOrderFilled, events[0].Type)
	assert.Equal(t, journal.EventOrderSubmitted, events[1].Type)
}

func TestSubmitEndpoint_GatewayFailureIsJournaled(t *testing.T) {
	a := newTestApp(t, WithGateway(failingGateway{err: errors.New("broker offline")}))

	rec := post(t, a.Handler(), "/v1/orders", map[string]string{"text": goldSignal})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, desk.StageSubmitted, resp.Stage)
	a.Wait()

	state := getOrderState(t, a, resp.ClientOrderID)
	assert.Equal(t, desk.StageFailed, state.Stage)
	assert.Contains(t, state.Error, "broker offline")
	assert.Empty(t, state.OrderID)

	rejected, err := a.journal.ListEvents(context.Background(), journal.EventOrderRejected, 10)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Contains(t, string(rejected[0].Payload.(json.RawMessage)), "broker offline")

	errs, err := a.journal.ListEvents(context.Background(), journal.EventError, 10)
	require.NoError(t, err)
	assert.Len(t, errs, 1)

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events?type=order_rejected", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "broker offline")
}

func TestSubmitEndpoint_VolumeOverrideIsSubmittable(t *testing.T) {
	a := newTestApp(t)

	rec := post(t, a.Handler(), "/v1/orders", map[string]interface{}{"text": "buy EURUSD @1.1 tp 1.2", "volume": 0.3})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, desk.StageSubmitted, resp.Stage)
	assert.Equal(t, 0.3, resp.Order.Volume)
	a.Wait()
}

func TestOrderEndpoint_UnknownID(t *testing.T) {
	a := newTestApp(t)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/orders/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	a := newTestApp(t)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Port = 0
	st, err := store.NewSQLite(cfg.Database)
	require.NoError(t, err)
	defer st.Close()

	a, err := New(context.Background(), cfg, nil, st)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
