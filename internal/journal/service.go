// Package journal 持久化执行网关的往来记录。解析出的指令本身不落库。
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"signal-desk/internal/store"
)

// Service 负责持久化执行事件。
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewService 初始化日志服务，创建所需表结构。
func NewService(ctx context.Context, st *store.Store, logger *zap.Logger) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("journal: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	err := st.EnsureSchema(ctx,
		`CREATE TABLE IF NOT EXISTS execution_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			client_order_id TEXT,
			payload TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_execution_events_type ON execution_events(event_type);`,
		`CREATE INDEX IF NOT EXISTS idx_execution_events_order ON execution_events(client_order_id);`,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}

	return &Service{
		db:     st.DB(),
		logger: logger,
	}, nil
}

// Record 写入单个事件。
func (s *Service) Record(ctx context.Context, event Event, clientOrderID string) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("journal: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var orderID interface{}
	if clientOrderID != "" {
		orderID = clientOrderID
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO execution_events (event_type, client_order_id, payload, created_at) VALUES (?, ?, ?, ?)`,
		string(event.Type), orderID, string(payload), event.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("journal: 写入事件失败: %w", err)
	}

	return nil
}

// RecordSubmission 记录委托提交。
func (s *Service) RecordSubmission(ctx context.Context, payload SubmissionPayload) {
	if err := s.Record(ctx, Event{Type: EventOrderSubmitted, Payload: payload}, payload.ClientOrderID); err != nil {
		s.logger.Warn("记录委托提交失败", zap.Error(err))
	}
}

// RecordOutcome 记录网关结果，Error 非空时记为拒单。
func (s *Service) RecordOutcome(ctx context.Context, payload OutcomePayload) {
	typ := EventOrderFilled
	if payload.Error != "" {
		typ = EventOrderRejected
	}
	if err := s.Record(ctx, Event{Type: typ, Payload: payload}, payload.ClientOrderID); err != nil {
		s.logger.Warn("记录委托结果失败", zap.Error(err))
	}
}

// RecordError 记录异常。
func (s *Service) RecordError(ctx context.Context, msg string, err error, ctxMap map[string]interface{}) {
	payload := ErrorPayload{
		Message: msg,
		Context: ctxMap,
	}
	if err != nil {
		payload.Error = err.Error()
	}
	if recErr := s.Record(ctx, Event{Type: EventError, Payload: payload}, ""); recErr != nil {
		s.logger.Warn("记录异常事件失败", zap.Error(recErr))
	}
}

// ListEvents 按类型检索最近事件，eventType 为空时返回全部类型。
func (s *Service) ListEvents(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	return s.query(ctx, eventType, "", limit)
}

// ListOrderEvents 返回某个委托的全部事件。
func (s *Service) ListOrderEvents(ctx context.Context, clientOrderID string) ([]Event, error) {
	return s.query(ctx, "", clientOrderID, 1000)
}

func (s *Service) query(ctx context.Context, eventType EventType, clientOrderID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, event_type, payload, created_at FROM execution_events WHERE 1=1`
	args := make([]interface{}, 0, 3)
	if eventType != "" {
		query += ` AND event_type = ?`
		args = append(args, string(eventType))
	}
	if clientOrderID != "" {
		query += ` AND client_order_id = ?`
		args = append(args, clientOrderID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: 查询事件失败: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			id      int64
			typ     string
			payload string
			created string
		)
		if scanErr := rows.Scan(&id, &typ, &payload, &created); scanErr != nil {
			return nil, fmt.Errorf("journal: 解析事件失败: %w", scanErr)
		}

		ts, parseErr := time.Parse(time.RFC3339Nano, created)
		if parseErr != nil {
			ts = time.Time{}
		}

		events = append(events, Event{
			ID:        id,
			Type:      EventType(typ),
			Timestamp: ts,
			Payload:   json.RawMessage(payload),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: 读取事件失败: %w", err)
	}

	return events, nil
}
