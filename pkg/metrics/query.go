package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// TypeSummary aggregates refinement metrics for one diagram type as seen by a
// Prometheus server scraping documenter textfiles.
type TypeSummary struct {
	DiagramType string  `json:"diagram_type"`
	Refined     float64 `json:"refined"`
	Rejected    float64 `json:"rejected"`
	Partial     float64 `json:"partial"`
	RulesMerged float64 `json:"rules_merged"`
}

// QueryService provides methods to query documenter metrics from Prometheus.
type QueryService struct {
	queryAPI v1.API
}

// NewQueryService creates a new metrics query service.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{Address: prometheusURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}
	return &QueryService{queryAPI: v1.NewAPI(client)}, nil
}

// Summaries returns per-diagram-type totals keyed by diagram type.
func (q *QueryService) Summaries(ctx context.Context) (map[string]*TypeSummary, error) {
	result := make(map[string]*TypeSummary)
	get := func(dt string) *TypeSummary {
		s, ok := result[dt]
		if !ok {
			s = &TypeSummary{DiagramType: dt}
			result[dt] = s
		}
		return s
	}

	outcomes, err := q.vector(ctx, `sum by (diagram_type, outcome) (documenter_refinements_total)`)
	if err != nil {
		return nil, fmt.Errorf("failed to query refinements: %w", err)
	}
	for _, sample := range outcomes {
		s := get(string(sample.Metric["diagram_type"]))
		v := float64(sample.Value)
		switch string(sample.Metric["outcome"]) {
		case OutcomeRefined:
			s.Refined += v
		case OutcomeRejected:
			s.Rejected += v
		case OutcomePartial:
			s.Partial += v
		}
	}

	merged, err := q.vector(ctx, `sum by (diagram_type) (documenter_rules_merged_total)`)
	if err != nil {
		return nil, fmt.Errorf("failed to query merged rules: %w", err)
	}
	for _, sample := range merged {
		get(string(sample.Metric["diagram_type"])).RulesMerged += float64(sample.Value)
	}

	return result, nil
}

func (q *QueryService) vector(ctx context.Context, query string) (model.Vector, error) {
	res, _, err := q.queryAPI.Query(ctx, query, time.Now())
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by callers
	}
	vec, ok := res.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %s", res.Type())
	}
	return vec, nil
}
