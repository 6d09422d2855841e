package schedule

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/danielthames360/baby-spa-sub004/internal/storage"
	"github.com/danielthames360/baby-spa-sub004/pkg/logging"
)

var scheduleTracer = otel.Tracer("babyspa.internal.schedule")

// Service answers availability queries, caching results per date/channel.
type Service struct {
	db         storage.Querier
	calculator *Calculator
	cache      *AvailabilityCache
	logger     *logging.Logger
}

// NewService constructs the availability service.
func NewService(db storage.Querier, calculator *Calculator, cache *AvailabilityCache, logger *logging.Logger) *Service {
	if calculator == nil {
		panic("schedule: calculator required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{db: db, calculator: calculator, cache: cache, logger: logger}
}

// Calculator exposes the underlying calculator for in-transaction guards.
func (s *Service) Calculator() *Calculator {
	return s.calculator
}

// Availability computes the slot list for a date and channel. clientNow is
// the caller-reported timestamp used for the same-day portal buffer; it may
// be nil for staff queries.
func (s *Service) Availability(ctx context.Context, date time.Time, channel Channel, clientNow *time.Time) ([]Slot, error) {
	ctx, span := scheduleTracer.Start(ctx, "schedule.availability")
	defer span.End()
	span.SetAttributes(
		attribute.String("babyspa.date", date.Format("2006-01-02")),
		attribute.String("babyspa.channel", string(channel)),
	)

	// Same-day portal responses depend on the caller's clock, so only
	// cache requests that the buffer cannot affect.
	cacheable := clientNow == nil || !sameDate(date, *clientNow)
	if cacheable && s.cache != nil {
		if slots := s.cache.Get(ctx, date, channel); slots != nil {
			return slots, nil
		}
	}

	day, err := NewRepository(s.db).LoadDay(ctx, date)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	slots := s.calculator.Compute(day, channel, clientNow)

	if cacheable && s.cache != nil {
		s.cache.Put(ctx, date, channel, slots)
	}
	return slots, nil
}
