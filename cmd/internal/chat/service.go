package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/metrics"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/ratelimit"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/realtime"
	v1 "github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/shared/contracts/realtime/v1"
)

const (
	// SubmitLimit and SubmitWindow bound submits per authenticated identity.
	SubmitLimit  = 30
	SubmitWindow = 60 * time.Second
)

// SubmitInput is one authenticated submit.
type SubmitInput struct {
	UserID   string
	UserName string
	Message  string
}

// Service owns the chat write path.
type Service struct {
	log     *slog.Logger
	store   MessageStore
	feed    realtime.ChangePublisher
	limiter *ratelimit.FixedWindow
	metrics *metrics.Metrics
	now     func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLimitStore keeps submit counters in store (e.g. Redis) instead of process memory.
func WithLimitStore(store ratelimit.Store) ServiceOption {
	return func(s *Service) {
		if store != nil {
			s.limiter = ratelimit.NewFixedWindow(store, "chat.submit", SubmitLimit, SubmitWindow)
		}
	}
}

// WithMetrics records submit outcomes.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a Service. feed may be nil when nobody listens for changes.
func NewService(log *slog.Logger, store MessageStore, feed realtime.ChangePublisher, opts ...ServiceOption) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		log:     log,
		store:   store,
		feed:    feed,
		limiter: ratelimit.NewFixedWindow(ratelimit.NewMemoryStore(), "chat.submit", SubmitLimit, SubmitWindow),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Submit validates, sanitizes, rate limits, persists and publishes one message.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Message, error) {
	const op = "chat.Submit"

	if strings.TrimSpace(in.UserID) == "" {
		return Message{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing user"}
	}
	body := SanitizeMessage(in.Message)
	if body == "" {
		s.metrics.ChatSubmit("invalid")
		return Message{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "message is required"}
	}

	now := s.now()
	d, err := s.limiter.Allow(ctx, in.UserID, now)
	switch {
	case err != nil:
		// A limiter outage must not take the chat down.
		s.log.Warn("chat.submit.limiter.fail", "err", err)
	case !d.Allowed:
		s.metrics.ChatSubmit("rate_limited")
		s.log.Info("chat.submit.rate_limited", "user_id", in.UserID, "retry_after", d.RetryAfter)
		return Message{}, RateLimitError{Op: op, RetryAfter: d.RetryAfter}
	}

	m, err := s.store.Insert(ctx, NewMessage{
		UserID:   in.UserID,
		UserName: SanitizeDisplayName(in.UserName),
		Message:  body,
		Now:      now,
	})
	if err != nil {
		s.metrics.ChatSubmit("error")
		return Message{}, err
	}
	s.metrics.ChatSubmit("ok")

	s.publish(ctx, func() (realtime.Change, error) { return realtime.NewInsert(v1.TableMessages, m, now) })
	return m, nil
}

// History returns the newest limit messages in ascending order.
func (s *Service) History(ctx context.Context, limit int) ([]Message, error) {
	return s.store.Recent(ctx, limit)
}

// Delete removes a message and publishes the DELETE change.
func (s *Service) Delete(ctx context.Context, id string) (Message, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Message{}, OpError{Op: "chat.Delete", Kind: ErrInvalidInput, Msg: "missing id"}
	}
	m, err := s.store.Delete(ctx, id)
	if err != nil {
		return Message{}, err
	}
	now := s.now()
	s.publish(ctx, func() (realtime.Change, error) { return realtime.NewDelete(v1.TableMessages, m, now) })
	return m, nil
}

// publish is best effort: the row is already committed and history reads will show it.
func (s *Service) publish(ctx context.Context, build func() (realtime.Change, error)) {
	if s.feed == nil {
		return
	}
	ch, err := build()
	if err == nil {
		err = s.feed.PublishChange(ctx, ch)
	}
	if err != nil {
		s.log.Error("chat.change.publish.fail", "err", err)
	}
}

// retryAfter extracts the wait from a RateLimitError.
func retryAfter(err error) (time.Duration, bool) {
	var rl RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}
