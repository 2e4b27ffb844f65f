// Package gap computes the legislative gap metric: the share of citizen
// demand per dimension that no in-tramitation bill addresses.
package gap

import (
	"fmt"
	"time"

	"vozlocal/pkg/logx"
	"vozlocal/pkg/persistence"
	"vozlocal/pkg/proto"
)

// Severity buckets for a gap percentage.
const (
	SeverityHigh   = "alta"
	SeverityMedium = "media"
	SeverityLow    = "baixa"
)

// Result is the outcome of one gap computation.
type Result struct {
	GapPercent float64
	Severity   string
}

// ComputeGap returns the gap percentage and severity for one dimension key.
// Pure and deterministic: identical counts always yield identical results.
//
// Zero demand means no measurable gap, not an undefined value. A surplus of
// bills clamps to zero rather than going negative.
func ComputeGap(demandCount, billCount int) Result {
	var pct float64
	if demandCount > 0 {
		pct = float64(demandCount-billCount) / float64(demandCount) * 100
		if pct < 0 {
			pct = 0
		}
	}
	return Result{GapPercent: pct, Severity: SeverityFor(pct)}
}

// SeverityFor buckets a gap percentage. Band lower bounds are inclusive.
func SeverityFor(gapPercent float64) string {
	switch {
	case gapPercent >= 70:
		return SeverityHigh
	case gapPercent >= 40:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Source supplies the grouped counts and receives the recomputed cache.
type Source interface {
	DemandCounts(dim proto.Dimension) (map[string]int, error)
	BillCounts(dim proto.Dimension) (map[string]int, error)
	ReplaceGapMetrics(dim proto.Dimension, metrics []*persistence.GapMetric) error
}

// Engine recomputes and caches gap metrics across all dimensions.
type Engine struct {
	source Source
	logger *logx.Logger
	clock  func() time.Time
}

// NewEngine creates a gap engine over the given source.
func NewEngine(source Source) *Engine {
	return &Engine{
		source: source,
		logger: logx.NewLogger("gap"),
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// RecomputeAll refreshes the cached metrics for every dimension. Each
// dimension is rewritten atomically; re-running with unchanged inputs
// produces the same cache.
func (e *Engine) RecomputeAll() error {
	for _, dim := range proto.Dimensions() {
		if err := e.recompute(dim); err != nil {
			return fmt.Errorf("recompute gap for %s: %w", dim, err)
		}
	}
	return nil
}

// recompute builds the metrics for one dimension. Keys with demand but no
// bills are emitted with a 100% gap; that missing coverage is the signal
// this metric exists to surface.
func (e *Engine) recompute(dim proto.Dimension) error {
	demand, err := e.source.DemandCounts(dim)
	if err != nil {
		return err
	}
	bills, err := e.source.BillCounts(dim)
	if err != nil {
		return err
	}

	now := e.clock()
	metrics := make([]*persistence.GapMetric, 0, len(demand))
	for key, d := range demand {
		res := ComputeGap(d, bills[key])
		metrics = append(metrics, &persistence.GapMetric{
			DimensionKind: string(dim),
			DimensionKey:  key,
			DemandCount:   d,
			BillCount:     bills[key],
			GapPercent:    res.GapPercent,
			Severity:      res.Severity,
			ComputedAt:    now,
		})
	}

	if err := e.source.ReplaceGapMetrics(dim, metrics); err != nil {
		return err
	}
	e.logger.Debug("recomputed %d gap metrics for dimension %s", len(metrics), dim)
	return nil
}
