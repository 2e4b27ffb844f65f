package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// PipelineTotals is the aggregate view the dashboard collaborator reads.
type PipelineTotals struct {
	EventsReceived int64 `json:"events_received"`
	EventsDropped  int64 `json:"events_dropped"`
	TurnsProcessed int64 `json:"turns_processed"`
	TurnErrors     int64 `json:"turn_errors"`
	OutboundSent   int64 `json:"outbound_sent"`
}

// QueryService queries aggregated pipeline series back from Prometheus.
type QueryService struct {
	client   api.Client
	queryAPI v1.API
}

// NewQueryService creates a query service against a Prometheus server.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{Address: prometheusURL})
	if err != nil {
		return nil, fmt.Errorf("create prometheus client: %w", err)
	}
	return &QueryService{
		client:   client,
		queryAPI: v1.NewAPI(client),
	}, nil
}

// GetPipelineTotals retrieves the pipeline's lifetime counters.
func (q *QueryService) GetPipelineTotals(ctx context.Context) (*PipelineTotals, error) {
	totals := &PipelineTotals{}

	queries := []struct {
		expr string
		dest *int64
	}{
		{`sum(vozlocal_events_total)`, &totals.EventsReceived},
		{`sum(vozlocal_events_dropped_total)`, &totals.EventsDropped},
		{`sum(vozlocal_turns_total)`, &totals.TurnsProcessed},
		{`sum(vozlocal_turns_total{status="error"})`, &totals.TurnErrors},
		{`sum(vozlocal_outbound_messages_total)`, &totals.OutboundSent},
	}

	for _, query := range queries {
		result, _, err := q.queryAPI.Query(ctx, query.expr, time.Now())
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", query.expr, err)
		}
		if vector, ok := result.(model.Vector); ok && len(vector) > 0 {
			*query.dest = int64(vector[0].Value)
		}
	}

	return totals, nil
}

// TotalsSource serves aggregate pipeline counters.
type TotalsSource interface {
	GetPipelineTotals(ctx context.Context) (*PipelineTotals, error)
}

// TotalsHandler serves the pipeline totals as JSON for the dashboard
// collaborator.
func TotalsHandler(source TotalsSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		totals, err := source.GetPipelineTotals(r.Context())
		if err != nil {
			http.Error(w, "pipeline totals unavailable", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(totals); err != nil {
			http.Error(w, "encode totals", http.StatusInternalServerError)
		}
	})
}
