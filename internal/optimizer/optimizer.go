package optimizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/tour-planner/internal/catalog"
)

// TourSource lists the tours of a region in a stable order.
type TourSource interface {
	ToursInRegion(regionID string) []*catalog.Tour
}

// Optimizer builds the most valuable tour package for a region.
type Optimizer interface {
	Optimize(ctx context.Context, regionID string, limits Limits) (Result, error)
}

// Option configures the optimizer.
type Option func(*packageOptimizer)

// WithMaxTours rejects regions with more than n tours. Zero disables the ceiling.
func WithMaxTours(n int) Option {
	return func(o *packageOptimizer) {
		o.maxTours = n
	}
}

// WithMetrics records search outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(o *packageOptimizer) {
		o.metrics = m
	}
}

// WithLogger sets the logger used for per-search debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(o *packageOptimizer) {
		o.logger = logger
	}
}

// packageOptimizer only holds configuration; every call owns its search state.
type packageOptimizer struct {
	source   TourSource
	maxTours int
	metrics  *Metrics
	logger   *zap.Logger
}

// New creates an Optimizer reading tours from source.
func New(source TourSource, opts ...Option) Optimizer {
	o := &packageOptimizer{
		source: source,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *packageOptimizer) Optimize(ctx context.Context, regionID string, limits Limits) (Result, error) {
	tours := o.source.ToursInRegion(regionID)
	if o.maxTours > 0 && len(tours) > o.maxTours {
		o.metrics.observe(outcomeRejected, 0, 0)
		return Result{}, fmt.Errorf("%w: %d tours in region %s, limit is %d", ErrTooManyTours, len(tours), regionID, o.maxTours)
	}

	start := time.Now()
	result, err := Search(ctx, tours, limits)
	elapsed := time.Since(start)
	if err != nil {
		outcome := outcomeCanceled
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = outcomeTimeout
		}
		o.metrics.observe(outcome, elapsed, 0)
		return Result{}, err
	}
	result.RegionID = regionID

	o.metrics.observe(outcomeOK, elapsed, result.Explored)
	o.logger.Debug("package search completed",
		zap.String("region_id", regionID),
		zap.Int("candidates", len(tours)),
		zap.Int("explored", result.Explored),
		zap.Int("total_value", result.TotalValue),
		zap.Float64("total_cost", result.TotalCost),
		zap.Duration("duration", elapsed),
	)
	return result, nil
}
