// Package zakat computes the obligation owed on a user's net zakatable
// wealth under a chosen methodology.
package zakat

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mizan/internal/methodology"
	"mizan/internal/nisab"
	"mizan/internal/wealth/service"
	"mizan/internal/zakat/metrics"
	id "mizan/pkg/domain"
)

var tracer = otel.Tracer("mizan/internal/zakat")

// CategoryDue is one row of the per-category breakdown.
type CategoryDue struct {
	Category methodology.AssetCategory `json:"category"`
	// Gross is the category's aggregated contribution before liability
	// allocation.
	Gross decimal.Decimal `json:"gross"`
	// Net is the category's share of the zakatable base after liabilities are
	// allocated proportionally across categories.
	Net  decimal.Decimal `json:"net"`
	Rate decimal.Decimal `json:"rate"`
	Due  decimal.Decimal `json:"due"`
}

// Calculation is a full zakat assessment. It is a point-in-time view and is
// never persisted as-is; finalization snapshots the relevant figures into a
// nisab year record.
type Calculation struct {
	Methodology      methodology.ID
	TotalWealth      decimal.Decimal
	TotalLiabilities decimal.Decimal
	NetWealth        decimal.Decimal
	Thresholds       nisab.Thresholds
	AboveNisab       bool
	ZakatDue         decimal.Decimal
	Breakdown        []CategoryDue
	Skipped          []service.SkippedAsset
	// Complete mirrors the aggregation flag: false means some assets were
	// skipped and the figures are a lower bound.
	Complete bool
}

// Engine computes zakat obligations. Read-only and safe for concurrent use.
type Engine struct {
	registry   *methodology.Registry
	resolver   *nisab.Resolver
	aggregator *service.Aggregator
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewEngine constructs the calculation engine.
func NewEngine(registry *methodology.Registry, resolver *nisab.Resolver, aggregator *service.Aggregator, m *metrics.Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		registry:   registry,
		resolver:   resolver,
		aggregator: aggregator,
		metrics:    m,
		logger:     logger,
	}
}

// Calculate assesses the user's obligation under the given methodology. It is
// a display/preview path: a stale-but-retained nisab valuation is acceptable
// and flagged via Thresholds.Stale. Formal assessments at finalization resolve
// prices strictly.
func (e *Engine) Calculate(ctx context.Context, userID id.UserID, methodologyID methodology.ID, now time.Time) (*Calculation, error) {
	ctx, span := tracer.Start(ctx, "zakat.Calculate",
		trace.WithAttributes(attribute.String("methodology", string(methodologyID))))
	defer span.End()

	m, err := e.registry.Get(methodologyID)
	if err != nil {
		return nil, err
	}

	net, err := e.aggregator.NetZakatableWealth(ctx, userID, m)
	if err != nil {
		return nil, err
	}

	thresholds, err := e.resolver.ResolveOrLast(ctx, m.NisabBasis, now)
	if err != nil {
		return nil, err
	}

	calc := &Calculation{
		Methodology:      methodologyID,
		TotalWealth:      net.TotalWealth,
		TotalLiabilities: net.TotalLiabilities,
		NetWealth:        net.NetWealth,
		Thresholds:       thresholds,
		Skipped:          net.Skipped,
		Complete:         net.Complete,
		ZakatDue:         decimal.Zero,
	}

	calc.AboveNisab = net.NetWealth.GreaterThanOrEqual(thresholds.EffectiveNisab) && net.NetWealth.IsPositive()
	if calc.AboveNisab {
		calc.Breakdown = Breakdown(m, net)
		calc.ZakatDue = Due(m, net)
	}

	e.metrics.Calculations.WithLabelValues(string(methodologyID)).Inc()
	if calc.AboveNisab {
		e.metrics.AboveNisab.Inc()
	} else {
		e.metrics.BelowNisab.Inc()
	}
	e.logger.DebugContext(ctx, "zakat calculated",
		"user_id", userID,
		"methodology", methodologyID,
		"above_nisab", calc.AboveNisab,
		"complete", calc.Complete,
	)
	return calc, nil
}

// Due computes the rounded obligation on a net aggregate. Finalization uses
// it directly so snapshot amounts match what Calculate would report.
func Due(m methodology.Methodology, net *service.NetWealth) decimal.Decimal {
	due := decimal.Zero
	for _, row := range Breakdown(m, net) {
		due = due.Add(row.Due)
	}
	return m.Round(due)
}

// Breakdown allocates the liability deduction proportionally across category
// contributions, then applies each category's effective rate. With no rate
// overrides this reduces exactly to net * default rate.
func Breakdown(m methodology.Methodology, net *service.NetWealth) []CategoryDue {
	if net.NetWealth.IsZero() || net.TotalWealth.IsZero() {
		return nil
	}
	// Net share of every gross unit.
	ratio := net.NetWealth.Div(net.TotalWealth)

	categories := make([]methodology.AssetCategory, 0, len(net.ByCategory))
	for category := range net.ByCategory {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	rows := make([]CategoryDue, 0, len(categories))
	for _, category := range categories {
		gross := net.ByCategory[category]
		allocated := gross.Mul(ratio)
		rate := m.RateFor(category)
		rows = append(rows, CategoryDue{
			Category: category,
			Gross:    gross,
			Net:      m.Round(allocated),
			Rate:     rate,
			Due:      allocated.Mul(rate),
		})
	}
	return rows
}
