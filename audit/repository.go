// audit/repository.go
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	echo_errors "github.com/dev-mohitbeniwal/echo/accessproxy/errors"
	logger "github.com/dev-mohitbeniwal/echo/accessproxy/logging"
)

type Repository interface {
	LogAccess(ctx context.Context, log AuditLog) error
	QueryLogs(ctx context.Context, from, to time.Time, actor string) ([]AuditLog, error)
}

type ElasticsearchRepository struct {
	esClient *elasticsearch.Client
	index    string
}

// NewElasticsearchRepository creates a repository writing to index on the cluster at esURL.
func NewElasticsearchRepository(esURL, index string) (*ElasticsearchRepository, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{esURL},
	}
	esClient, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	return &ElasticsearchRepository{esClient: esClient, index: index}, nil
}

// LogAccess indexes one audit record; the document ID is assigned by Elasticsearch.
func (r *ElasticsearchRepository) LogAccess(ctx context.Context, log AuditLog) error {
	data, err := json.Marshal(log)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index: r.index,
		Body:  bytes.NewReader(data),
	}

	res, err := req.Do(ctx, r.esClient)
	if err != nil {
		return fmt.Errorf("%w: %v", echo_errors.ErrAuditUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: %s", echo_errors.ErrAuditIndexing, res.String())
	}

	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source AuditLog `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// QueryLogs returns audit records in [from, to], optionally filtered by actor name.
func (r *ElasticsearchRepository) QueryLogs(ctx context.Context, from, to time.Time, actor string) ([]AuditLog, error) {
	must := []interface{}{
		map[string]interface{}{
			"range": map[string]interface{}{
				"timestamp": map[string]interface{}{
					"gte": from.Format(time.RFC3339),
					"lte": to.Format(time.RFC3339),
				},
			},
		},
	}
	if actor != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{"actor": actor},
		})
	}
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, err
	}

	res, err := r.esClient.Search(
		r.esClient.Search.WithContext(ctx),
		r.esClient.Search.WithIndex(r.index),
		r.esClient.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", echo_errors.ErrAuditUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("error searching audit logs: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	logs := make([]AuditLog, 0, len(sr.Hits.Hits))
	for _, hit := range sr.Hits.Hits {
		logs = append(logs, hit.Source)
	}
	return logs, nil
}

// LogRepository writes audit records to the application log. It cannot be queried.
type LogRepository struct{}

func NewLogRepository() *LogRepository {
	return &LogRepository{}
}

func (r *LogRepository) LogAccess(_ context.Context, log AuditLog) error {
	logger.Info("Audit",
		zap.Time("timestamp", log.Timestamp),
		zap.String("actor", log.Actor),
		zap.String("role", log.Role),
		zap.String("request", log.Request),
		zap.String("outcome", log.Outcome),
		zap.Bool("accessGranted", log.AccessGranted))
	return nil
}

func (r *LogRepository) QueryLogs(context.Context, time.Time, time.Time, string) ([]AuditLog, error) {
	return nil, fmt.Errorf("%w: log repository is write-only", echo_errors.ErrAuditUnavailable)
}
