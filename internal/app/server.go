package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"signal-desk/internal/desk"
	"signal-desk/internal/execution"
	"signal-desk/internal/instruction"
	"signal-desk/internal/journal"
	"signal-desk/internal/order"
	"signal-desk/internal/overlay"
)

const maxBodyBytes = 1 << 20

type textRequest struct {
	Text   string     `json:"text"`
	Risk   *RiskInput `json:"risk,omitempty"`
	Volume *float64   `json:"volume,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Guard string `json:"guard,omitempty"`
}

type sizingResponse struct {
	Instruction *instruction.Parsed `json:"instruction"`
	Sizing      interface{}         `json:"sizing"`
	Stage       desk.Stage          `json:"stage"`
}

type submitResponse struct {
	ClientOrderID string        `json:"client_order_id"`
	Gateway       string        `json:"gateway"`
	Stage         desk.Stage    `json:"stage"`
	Order         order.Request `json:"order"`
}

// Handler 返回包含全部接口的 http.Handler。
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/parse", a.handleParse)
	mux.HandleFunc("POST /v1/sizing", a.handleSizing)
	mux.HandleFunc("POST /v1/overlay", a.handleOverlay)
	mux.HandleFunc("POST /v1/orders/preview", a.handlePreview)
	mux.HandleFunc("POST /v1/orders", a.handleSubmit)
	mux.HandleFunc("GET /v1/orders/{id}", a.handleOrder)
	mux.HandleFunc("GET /v1/events", a.handleEvents)
	mux.Handle("GET /ws/chart", a.hub)
	mux.HandleFunc("GET /healthz", a.handleHealth)
	return mux
}

func (a *App) handleParse(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !a.decode(w, r, &req) {
		return
	}

	parsed, err := instruction.Parse(req.Text)
	if err != nil {
		a.logger.Warn("指令解析异常", zap.Error(err))
		a.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: instruction.UserMessage})
		return
	}
	a.writeJSON(w, http.StatusOK, parsed)
}

func (a *App) handleSizing(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !a.decode(w, r, &req) {
		return
	}

	state := a.Evaluate(r.Context(), req.Text, req.Risk)
	if state.Stage == desk.StageFailed {
		a.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: state.Error})
		return
	}
	a.writeJSON(w, http.StatusOK, sizingResponse{
		Instruction: state.Instruction,
		Sizing:      state.Sizing,
		Stage:       state.Stage,
	})
}

func (a *App) handleOverlay(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !a.decode(w, r, &req) {
		return
	}

	parsed, err := instruction.Parse(req.Text)
	if err != nil {
		a.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: instruction.UserMessage})
		return
	}

	markers := overlay.Project(parsed)
	overlay.Render(a.hub, markers)
	a.writeJSON(w, http.StatusOK, map[string]interface{}{"markers": markers})
}

func (a *App) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !a.decode(w, r, &req) {
		return
	}

	state, status, errResp := a.draft(r.Context(), req)
	if errResp != nil {
		a.writeJSON(w, status, errResp)
		return
	}
	a.writeJSON(w, http.StatusOK, state.Draft)
}

func (a *App) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !a.decode(w, r, &req) {
		return
	}

	state, status, errResp := a.draft(r.Context(), req)
	if errResp != nil {
		a.writeJSON(w, status, errResp)
		return
	}
	draft := *state.Draft

	// 提交在请求结束后继续进行
	ctx := context.WithoutCancel(r.Context())
	clientOrderID, outcomes := a.dispatcher.Submit(ctx, draft)
	state = a.reducer.Apply(state, desk.OrderSubmitted{OrderID: clientOrderID})
	a.orders.put(clientOrderID, state)
	a.journal.RecordSubmission(ctx, journal.SubmissionPayload{
		ClientOrderID: clientOrderID,
		Gateway:       a.gateway.Name(),
		Request:       draft,
	})

	a.outcomes.Add(1)
	go func() {
		defer a.outcomes.Done()
		for outcome := range outcomes {
			a.recordOutcome(ctx, outcome)
		}
	}()

	a.writeJSON(w, http.StatusAccepted, submitResponse{
		ClientOrderID: clientOrderID,
		Gateway:       a.gateway.Name(),
		Stage:         state.Stage,
		Order:         draft,
	})
}

func (a *App) handleOrder(w http.ResponseWriter, r *http.Request) {
	state, ok := a.orders.get(r.PathValue("id"))
	if !ok {
		a.writeJSON(w, http.StatusNotFound, errorResponse{Error: "order not found"})
		return
	}
	a.writeJSON(w, http.StatusOK, state)
}

func (a *App) recordOutcome(ctx context.Context, outcome execution.Outcome) {
	payload := journal.OutcomePayload{
		ClientOrderID:   outcome.ClientOrderID,
		ExchangeOrderID: outcome.Confirmation.ExchangeOrderID,
		Status:          outcome.Confirmation.Status,
		FilledPrice:     outcome.Confirmation.Price,
		LatencyMs:       outcome.Latency.Milliseconds(),
	}
	if outcome.Err != nil {
		payload.Error = outcome.Err.Error()
		a.orders.update(outcome.ClientOrderID, func(s desk.State) desk.State {
			return a.reducer.Apply(s, desk.OrderFailed{Err: outcome.Err})
		})
		if !errors.Is(outcome.Err, execution.ErrRejected) {
			a.journal.RecordError(ctx, "委托提交失败", outcome.Err, map[string]interface{}{
				"client_order_id": outcome.ClientOrderID,
				"symbol":          outcome.Request.Symbol,
			})
		}
	}
	a.journal.RecordOutcome(ctx, payload)
}

// draft 求值指令并返回可提交的状态；请求指定 volume 时覆盖计算出的仓位。
func (a *App) draft(ctx context.Context, req textRequest) (desk.State, int, *errorResponse) {
	state := a.Evaluate(ctx, req.Text, req.Risk)

	switch {
	case state.Stage == desk.StageFailed:
		return state, http.StatusUnprocessableEntity, &errorResponse{Error: state.Error}
	case state.Instruction == nil:
		return state, http.StatusUnprocessableEntity, &errorResponse{Error: "empty instruction"}
	case state.Instruction.Symbol == "":
		return state, http.StatusUnprocessableEntity, &errorResponse{Error: "missing symbol"}
	}

	if req.Volume != nil {
		if *req.Volume <= 0 {
			return state, http.StatusBadRequest, &errorResponse{Error: "volume must be positive"}
		}
		draft := order.Format(*state.Instruction, *req.Volume, state.Risk.MarketPrice)
		state.Draft = &draft
		state.Stage = desk.StageSized
		return state, http.StatusOK, nil
	}

	if !state.CanSubmit() {
		return state, http.StatusUnprocessableEntity, &errorResponse{
			Error: "position size unavailable",
			Guard: string(state.Sizing.Guard),
		}
	}
	return state, http.StatusOK, nil
}

func (a *App) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 200
	if qs := q.Get("limit"); qs != "" {
		if v, err := strconv.Atoi(qs); err == nil && v > 0 {
			if v > 1000 {
				v = 1000
			}
			limit = v
		}
	}

	eventType := journal.EventType("")
	if typ := strings.TrimSpace(q.Get("type")); typ != "" {
		eventType = journal.EventType(strings.ToLower(typ))
	}

	events, err := a.journal.ListEvents(r.Context(), eventType, limit)
	if err != nil {
		a.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	a.writeJSON(w, http.StatusOK, events)
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.store.Ping(ctx); err != nil {
		a.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"gateway": a.gateway.Name(),
	})
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("写入响应失败", zap.Error(err))
	}
}
