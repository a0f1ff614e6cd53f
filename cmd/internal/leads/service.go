package leads

import (
	"context"
	"log/slog"
	"time"

	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/metrics"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/ratelimit"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/realtime"
	v1 "github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/shared/contracts/realtime/v1"
)

const (
	// CaptureLimit and CaptureWindow bound lead submissions per client address.
	CaptureLimit  = 5
	CaptureWindow = 10 * time.Minute
)

// Service owns lead capture.
type Service struct {
	log     *slog.Logger
	store   Store
	feed    realtime.ChangePublisher
	limiter *ratelimit.FixedWindow
	metrics *metrics.Metrics
	now     func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLimitStore keeps capture counters in store (e.g. Redis).
func WithLimitStore(store ratelimit.Store) ServiceOption {
	return func(s *Service) {
		if store != nil {
			s.limiter = ratelimit.NewFixedWindow(store, "leads.capture", CaptureLimit, CaptureWindow)
		}
	}
}

// WithMetrics records capture outcomes.
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

// NewService constructs a Service.
func NewService(log *slog.Logger, store Store, feed realtime.ChangePublisher, opts ...ServiceOption) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		log:     log,
		store:   store,
		feed:    feed,
		limiter: ratelimit.NewFixedWindow(ratelimit.NewMemoryStore(), "leads.capture", CaptureLimit, CaptureWindow),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Capture validates and stores a lead, then publishes the INSERT change.
// clientKey identifies the caller for rate limiting (an IP fingerprint); empty skips it.
func (s *Service) Capture(ctx context.Context, clientKey string, req CaptureRequest) (Lead, error) {
	const op = "leads.Capture"

	req = req.Normalize()
	if err := req.Validate(); err != nil {
		s.metrics.LeadCaptured("invalid")
		return Lead{}, ValidationError{Op: op, Fields: fieldErrors(err)}
	}

	now := s.now()
	if clientKey != "" {
		d, err := s.limiter.Allow(ctx, clientKey, now)
		switch {
		case err != nil:
			s.log.Warn("leads.capture.limiter.fail", "err", err)
		case !d.Allowed:
			s.metrics.LeadCaptured("rate_limited")
			return Lead{}, RateLimitError{Op: op, RetryAfter: d.RetryAfter}
		}
	}

	l, err := s.store.Insert(ctx, Lead{
		Name:        req.Name,
		Phone:       req.Phone,
		Email:       req.Email,
		Message:     req.Message,
		PropertyRef: req.PropertyRef,
		Source:      req.Source,
		CreatedAt:   now,
	})
	if err != nil {
		s.metrics.LeadCaptured("error")
		return Lead{}, err
	}
	s.metrics.LeadCaptured("ok")
	s.log.Info("leads.capture.ok", "lead_id", l.ID, "source", l.Source)

	if s.feed != nil {
		ch, err := realtime.NewInsert(v1.TableLeads, l, now)
		if err == nil {
			err = s.feed.PublishChange(ctx, ch)
		}
		if err != nil {
			s.log.Error("leads.change.publish.fail", "err", err, "lead_id", l.ID)
		}
	}
	return l, nil
}

// Recent lists the newest leads, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]Lead, error) {
	return s.store.Recent(ctx, limit)
}
