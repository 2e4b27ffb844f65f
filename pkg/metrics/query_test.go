package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTotalsSource struct {
	totals *PipelineTotals
	err    error
}

func (f *fakeTotalsSource) GetPipelineTotals(context.Context) (*PipelineTotals, error) {
	return f.totals, f.err
}

func TestNewQueryService(t *testing.T) {
	svc, err := NewQueryService("http://localhost:9091")
	require.NoError(t, err)
	assert.NotNil(t, svc)

	_, err = NewQueryService("://not-a-url")
	assert.Error(t, err)
}

func TestTotalsHandlerServesJSON(t *testing.T) {
	handler := TotalsHandler(&fakeTotalsSource{totals: &PipelineTotals{
		EventsReceived: 120,
		EventsDropped:  3,
		TurnsProcessed: 110,
		TurnErrors:     2,
		OutboundSent:   240,
	}})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/totals", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var totals PipelineTotals
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &totals))
	assert.Equal(t, int64(120), totals.EventsReceived)
	assert.Equal(t, int64(2), totals.TurnErrors)
	assert.Equal(t, int64(240), totals.OutboundSent)
}

func TestTotalsHandlerUpstreamFailure(t *testing.T) {
	handler := TotalsHandler(&fakeTotalsSource{err: errors.New("prometheus unreachable")})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/totals", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
