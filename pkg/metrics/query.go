package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// SessionMetrics represents aggregated usage for one tutoring session.
type SessionMetrics struct {
	SessionID        string `json:"session_id"`
	Turns            int64  `json:"turns"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	TotalTokens      int64  `json:"total_tokens"`
}

// QueryService provides methods to query tutoring metrics from Prometheus.
type QueryService struct {
	client   api.Client
	queryAPI v1.API
}

// NewQueryService creates a metrics query service.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{
		client:   client,
		queryAPI: v1.NewAPI(client),
	}, nil
}

// GetSessionMetrics retrieves aggregated turn and token usage for a session.
func (q *QueryService) GetSessionMetrics(ctx context.Context, sessionID string) (*SessionMetrics, error) {
	metrics := &SessionMetrics{SessionID: sessionID}

	turnsQuery := fmt.Sprintf(`sum(tutor_turns_total{session_id=%q})`, sessionID)
	turnsResult, _, err := q.queryAPI.Query(ctx, turnsQuery, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	if vector, ok := turnsResult.(model.Vector); ok && len(vector) > 0 {
		metrics.Turns = int64(vector[0].Value)
	}

	promptQuery := fmt.Sprintf(`sum(tutor_tokens_total{session_id=%q, type="prompt"})`, sessionID)
	promptResult, _, err := q.queryAPI.Query(ctx, promptQuery, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query prompt tokens: %w", err)
	}
	if vector, ok := promptResult.(model.Vector); ok && len(vector) > 0 {
		metrics.PromptTokens = int64(vector[0].Value)
	}

	completionQuery := fmt.Sprintf(`sum(tutor_tokens_total{session_id=%q, type="completion"})`, sessionID)
	completionResult, _, err := q.queryAPI.Query(ctx, completionQuery, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query completion tokens: %w", err)
	}
	if vector, ok := completionResult.(model.Vector); ok && len(vector) > 0 {
		metrics.CompletionTokens = int64(vector[0].Value)
	}

	metrics.TotalTokens = metrics.PromptTokens + metrics.CompletionTokens
	return metrics, nil
}

// GetRouteBreakdown returns per-route turn counts across all sessions.
func (q *QueryService) GetRouteBreakdown(ctx context.Context) (map[string]int64, error) {
	result := make(map[string]int64)

	routesQuery := `sum by (route) (tutor_turns_total)`
	routesResult, _, err := q.queryAPI.Query(ctx, routesQuery, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query route breakdown: %w", err)
	}

	if vector, ok := routesResult.(model.Vector); ok {
		for _, sample := range vector {
			if route, ok := sample.Metric["route"]; ok {
				result[string(route)] = int64(sample.Value)
			}
		}
	}
	return result, nil
}
