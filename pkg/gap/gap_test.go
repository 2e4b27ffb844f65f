package gap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vozlocal/pkg/persistence"
	"vozlocal/pkg/proto"
)

func TestComputeGap(t *testing.T) {
	tests := []struct {
		name       string
		demand     int
		bills      int
		wantPct    float64
		wantSev    string
	}{
		{"zero demand means zero gap", 0, 5, 0, SeverityLow},
		{"zero demand zero bills", 0, 0, 0, SeverityLow},
		{"high band lower bound", 100, 30, 70.0, SeverityHigh},
		{"just below medium band", 100, 61, 39.0, SeverityLow},
		{"medium band lower bound", 100, 60, 40.0, SeverityMedium},
		{"full gap", 10, 0, 100.0, SeverityHigh},
		{"bill surplus clamps to zero", 5, 20, 0, SeverityLow},
		{"exact coverage", 7, 7, 0, SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeGap(tt.demand, tt.bills)
			assert.InDelta(t, tt.wantPct, got.GapPercent, 1e-9)
			assert.Equal(t, tt.wantSev, got.Severity)
		})
	}
}

func TestComputeGapDeterministic(t *testing.T) {
	first := ComputeGap(37, 12)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, ComputeGap(37, 12))
	}
}

type fakeSource struct {
	demand   map[proto.Dimension]map[string]int
	bills    map[proto.Dimension]map[string]int
	replaced map[proto.Dimension][]*persistence.GapMetric
}

func (f *fakeSource) DemandCounts(dim proto.Dimension) (map[string]int, error) {
	return f.demand[dim], nil
}

func (f *fakeSource) BillCounts(dim proto.Dimension) (map[string]int, error) {
	return f.bills[dim], nil
}

func (f *fakeSource) ReplaceGapMetrics(dim proto.Dimension, metrics []*persistence.GapMetric) error {
	if f.replaced == nil {
		f.replaced = make(map[proto.Dimension][]*persistence.GapMetric)
	}
	f.replaced[dim] = metrics
	return nil
}

func TestRecomputeAllEmitsZeroBillDimensions(t *testing.T) {
	source := &fakeSource{
		demand: map[proto.Dimension]map[string]int{
			proto.DimensionTheme: {
				string(proto.ThemeHealth):    10,
				string(proto.ThemeTransport): 4,
			},
		},
		bills: map[proto.Dimension]map[string]int{
			proto.DimensionTheme: {
				string(proto.ThemeHealth): 3,
				// no transport bills at all
			},
		},
	}

	engine := NewEngine(source)
	require.NoError(t, engine.RecomputeAll())

	themeMetrics := source.replaced[proto.DimensionTheme]
	require.Len(t, themeMetrics, 2)

	byKey := make(map[string]*persistence.GapMetric)
	for _, m := range themeMetrics {
		byKey[m.DimensionKey] = m
	}

	transport := byKey[string(proto.ThemeTransport)]
	require.NotNil(t, transport, "dimension with demand but no bills must still be emitted")
	assert.InDelta(t, 100.0, transport.GapPercent, 1e-9)
	assert.Equal(t, SeverityHigh, transport.Severity)
	assert.Equal(t, 4, transport.DemandCount)
	assert.Equal(t, 0, transport.BillCount)

	health := byKey[string(proto.ThemeHealth)]
	require.NotNil(t, health)
	assert.InDelta(t, 70.0, health.GapPercent, 1e-9)
	assert.Equal(t, SeverityHigh, health.Severity)
}

func TestRecomputeAllIdempotent(t *testing.T) {
	source := &fakeSource{
		demand: map[proto.Dimension]map[string]int{
			proto.DimensionCity: {"Recife": 8},
		},
		bills: map[proto.Dimension]map[string]int{
			proto.DimensionCity: {"Recife": 2},
		},
	}

	engine := NewEngine(source)
	require.NoError(t, engine.RecomputeAll())
	first := source.replaced[proto.DimensionCity]

	require.NoError(t, engine.RecomputeAll())
	second := source.replaced[proto.DimensionCity]

	require.Len(t, second, len(first))
	assert.Equal(t, first[0].GapPercent, second[0].GapPercent)
	assert.Equal(t, first[0].Severity, second[0].Severity)
}
