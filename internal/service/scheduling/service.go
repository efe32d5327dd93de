package scheduling

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"schedula/reservations/internal/domain"
	"schedula/reservations/internal/events"
	"schedula/reservations/internal/metrics"
	"schedula/reservations/internal/store"
)

const (
	DefaultLeadTime          = 24 * time.Hour
	DefaultPendingTTL        = 30 * time.Minute
	DefaultReservationLength = 15 * time.Minute
	DefaultReservationName   = "New Reservation"
)

// ExpiryScheduler runs one deferred task per reservation id.
type ExpiryScheduler interface {
	Schedule(id int64, at time.Time, fn func(ctx context.Context)) bool
	Cancel(id int64) bool
}

type Options struct {
	LeadTime          time.Duration
	PendingTTL        time.Duration
	ReservationLength time.Duration
	// Location interprets reservation dates and times. Defaults to time.Local.
	Location *time.Location
	Now      func() time.Time
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

type Service struct {
	store    store.Store
	events   events.Publisher
	expiry   ExpiryScheduler
	metrics  *metrics.Metrics
	validate *validator.Validate
	log      *slog.Logger

	now           func() time.Time
	loc           *time.Location
	leadTime      time.Duration
	pendingTTL    time.Duration
	defaultLength time.Duration
}

func NewService(st store.Store, pub events.Publisher, exp ExpiryScheduler, opts Options) *Service {
	if pub == nil {
		pub = nopPublisher{}
	}
	if exp == nil {
		exp = nopScheduler{}
	}
	if opts.LeadTime <= 0 {
		opts.LeadTime = DefaultLeadTime
	}
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = DefaultPendingTTL
	}
	if opts.ReservationLength <= 0 {
		opts.ReservationLength = DefaultReservationLength
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Service{
		store:         st,
		events:        pub,
		expiry:        exp,
		metrics:       opts.Metrics,
		validate:      newValidator(),
		log:           opts.Logger.With(slog.String("component", "scheduling")),
		now:           opts.Now,
		loc:           opts.Location,
		leadTime:      opts.LeadTime,
		pendingTTL:    opts.PendingTTL,
		defaultLength: opts.ReservationLength,
	}
}

func (s *Service) Location() *time.Location { return s.loc }

// tomorrow is the default reference date of the soonest-slot search.
func (s *Service) tomorrow() string {
	return domain.DateOf(s.now().In(s.loc).AddDate(0, 0, 1), s.loc)
}

func (s *Service) observe(op string, started time.Time) {
	s.metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

type nopPublisher struct{}

func (nopPublisher) Publish(...events.Kind) {}

type nopScheduler struct{}

func (nopScheduler) Schedule(int64, time.Time, func(context.Context)) bool { return false }
func (nopScheduler) Cancel(int64) bool                                     { return false }
