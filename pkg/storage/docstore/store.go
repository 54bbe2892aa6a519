// Package docstore stores event records as documents in an OpenSearch index.
package docstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"gitevents/pkg/storage"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// Config holds OpenSearch connection settings.
type Config struct {
	URL           string
	Username      string
	Password      string
	Index         string
	TLSSkipVerify bool
	// Refresh makes inserted documents visible to the next search.
	Refresh bool
}

// Store implements storage.EventStore on top of OpenSearch.
type Store struct {
	client  *opensearch.Client
	index   string
	refresh bool
}

// Open creates an OpenSearch-backed event store and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("opensearch url is required")
	}
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.TLSSkipVerify,
			},
		},
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: strings.Split(cfg.URL, ","),
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	info, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to ping opensearch: %w", err)
	}
	defer info.Body.Close()
	if info.IsError() {
		return nil, fmt.Errorf("opensearch returned error: %s", info.Status())
	}

	index := cfg.Index
	if index == "" {
		index = "events"
	}
	return &Store{client: client, index: index, refresh: cfg.Refresh}, nil
}

// InsertEvent indexes one event record under its id.
func (s *Store) InsertEvent(ctx context.Context, record storage.EventRecord) error {
	if s == nil || s.client == nil {
		return errors.New("store is not initialized")
	}
	if record.ID == "" {
		return errors.New("event id is required")
	}
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	opts := []func(*opensearchapi.IndexRequest){
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(record.ID),
	}
	if s.refresh {
		opts = append(opts, s.client.Index.WithRefresh("true"))
	}
	res, err := s.client.Index(s.index, bytes.NewReader(body), opts...)
	if err != nil {
		return fmt.Errorf("failed to index event: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		detail, _ := io.ReadAll(res.Body)
		return fmt.Errorf("opensearch error: %s - %s", res.Status(), string(detail))
	}
	return nil
}

// FindRecentEvents returns up to limit records sorted by timestamp desc.
func (s *Store) FindRecentEvents(ctx context.Context, limit int) ([]storage.EventRecord, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("store is not initialized")
	}
	bodyBytes, err := json.Marshal(searchBody(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search body: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(bodyBytes)),
		s.client.Search.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search events: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return []storage.EventRecord{}, nil
	}
	if res.IsError() {
		detail, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("opensearch error: %s - %s", res.Status(), string(detail))
	}

	var result struct {
		Hits struct {
			Hits []struct {
				ID     string          `json:"_id"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	records := make([]storage.EventRecord, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		var record storage.EventRecord
		if err := json.Unmarshal(hit.Source, &record); err != nil {
			return nil, fmt.Errorf("failed to decode event %s: %w", hit.ID, err)
		}
		if record.ID == "" {
			record.ID = hit.ID
		}
		records = append(records, record)
	}
	return records, nil
}

// Close is a no-op for the HTTP-backed client.
func (s *Store) Close() error {
	return nil
}

func searchBody(limit int) map[string]interface{} {
	body := map[string]interface{}{
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		"sort": []map[string]interface{}{
			{"timestamp": map[string]interface{}{"order": "desc", "missing": "_last", "unmapped_type": "date"}},
			{"created_at": map[string]interface{}{"order": "desc", "unmapped_type": "date"}},
		},
	}
	if limit > 0 {
		body["size"] = limit
	}
	return body
}
