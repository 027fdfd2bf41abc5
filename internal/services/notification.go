package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/peai-backend/internal/modules/pei"
	"github.com/yungbote/peai-backend/internal/observability"
	"github.com/yungbote/peai-backend/internal/platform/ctxutil"
	"github.com/yungbote/peai-backend/internal/platform/logger"
)

// Notification is a rendered message addressed to one recipient.
type Notification struct {
	Kind      pei.MessageKind `json:"kind"`
	PEIID     uuid.UUID       `json:"pei_id"`
	Recipient string          `json:"recipient"`
	Phone     string          `json:"-"`
	Email     string          `json:"-"`
	Body      string          `json:"body"`
	CreatedAt time.Time       `json:"created_at"`
}

// NotificationSink records composed notifications. Delivery lives elsewhere.
type NotificationSink interface {
	Record(ctx context.Context, n Notification) error
}

type logSink struct {
	log *logger.Logger
}

func NewLogSink(baseLog *logger.Logger) NotificationSink {
	return &logSink{log: baseLog.With("sink", "notifications")}
}

func (s *logSink) Record(ctx context.Context, n Notification) error {
	kv := []any{
		"kind", string(n.Kind),
		"pei_id", n.PEIID.String(),
		"recipient", n.Recipient,
		"phone", n.Phone,
		"email", n.Email,
		"chars", len([]rune(n.Body)),
	}
	s.log.Info("Notification recorded", append(kv, ctxutil.LogFields(ctx)...)...)
	return nil
}

// MemorySink keeps notifications in memory.
type MemorySink struct {
	mu    sync.Mutex
	items []Notification
}

func (m *MemorySink) Record(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, n)
	return nil
}

func (m *MemorySink) All() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.items...)
}

// Links builds public URLs embedded in messages.
type Links struct {
	BaseURL string
}

func (l Links) base() string {
	b := strings.TrimRight(strings.TrimSpace(l.BaseURL), "/")
	if b == "" {
		return "http://localhost:3000"
	}
	return b
}

func (l Links) Survey(peiID, respondentID uuid.UUID) string {
	return fmt.Sprintf("%s/form/%s/%s", l.base(), peiID, respondentID)
}

func (l Links) Dashboard(peiID uuid.UUID) string {
	return fmt.Sprintf("%s/pei/%s", l.base(), peiID)
}

type NotificationService interface {
	Notify(ctx context.Context, kind pei.MessageKind, to Notification, vars map[string]any) (*Notification, error)
	Links() Links
}

type notificationService struct {
	log      *logger.Logger
	composer pei.Composer
	sink     NotificationSink
	links    Links
	metrics  *observability.Metrics
	now      func() time.Time
}

func NewNotificationService(baseLog *logger.Logger, sink NotificationSink, links Links, metrics *observability.Metrics) NotificationService {
	if sink == nil {
		sink = NewLogSink(baseLog)
	}
	return &notificationService{
		log:     baseLog.With("service", "NotificationService"),
		sink:    sink,
		links:   links,
		metrics: metrics,
		now:     time.Now,
	}
}

func (s *notificationService) Links() Links { return s.links }

// Notify renders kind with vars and records it for the recipient described by
// to. A MissingContextError is returned to the caller, who decides whether it
// matters; the workflow itself never depends on it.
func (s *notificationService) Notify(ctx context.Context, kind pei.MessageKind, to Notification, vars map[string]any) (*Notification, error) {
	body, err := s.composer.Render(kind, vars)
	if err != nil {
		s.metrics.IncNotification(string(kind), "invalid")
		s.log.Warn("Notification not composed", "kind", string(kind), "error", err)
		return nil, err
	}
	n := to
	n.Kind = kind
	n.Body = body
	n.CreatedAt = s.now()
	if err := s.sink.Record(ctx, n); err != nil {
		s.metrics.IncNotification(string(kind), "error")
		return nil, err
	}
	s.metrics.IncNotification(string(kind), "recorded")
	return &n, nil
}
