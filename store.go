package main

import (
	"context"
	"fmt"
	"strings"

	"gitevents/internal"
	"gitevents/pkg/storage"
	"gitevents/pkg/storage/docstore"
	"gitevents/pkg/storage/records"
)

func openStore(ctx context.Context, cfg internal.StorageConfig) (storage.EventStore, error) {
	if strings.EqualFold(cfg.Driver, "opensearch") {
		store, err := docstore.Open(ctx, docstore.Config{
			URL:           cfg.DSN,
			Username:      cfg.OpenSearch.Username,
			Password:      cfg.OpenSearch.Password,
			Index:         cfg.OpenSearch.Index,
			TLSSkipVerify: cfg.OpenSearch.TLSSkipVerify,
			Refresh:       cfg.OpenSearch.Refresh,
		})
		if err != nil {
			return nil, fmt.Errorf("open opensearch store: %w", err)
		}
		return store, nil
	}

	store, err := records.Open(records.Config{
		Driver:      cfg.Driver,
		DSN:         cfg.DSN,
		Table:       cfg.Table,
		AutoMigrate: cfg.AutoMigrate,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	return store, nil
}
