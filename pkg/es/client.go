// Package es builds the Elasticsearch client and bootstraps the vector index.
package es

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"juris-rag-go/internal/config"
	"juris-rag-go/pkg/log"
)

// NewClient creates a client for cfg that sends requests through transport.
func NewClient(cfg config.ElasticsearchConfig, transport http.RoundTripper) (*elasticsearch.Client, error) {
	var addresses []string
	for _, addr := range strings.Split(cfg.Addresses, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			addresses = append(addresses, addr)
		}
	}
	if len(addresses) == 0 {
		return nil, errors.New("elasticsearch: no addresses configured")
	}

	esCfg := elasticsearch.Config{
		Addresses: addresses,
		Transport: transport,
		// retries are handled by the callers' retry policy
		DisableRetry: true,
	}
	if cfg.APIKey != "" {
		esCfg.APIKey = cfg.APIKey
	} else {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}
	return elasticsearch.NewClient(esCfg)
}

// IndexMapping returns the mapping of the chunk index for the given vector size.
// Embeddings are unit length, so l2_norm ranks like cosine while still accepting
// the zero vectors stored for chunks whose embedding failed.
func IndexMapping(dims int) string {
	return fmt.Sprintf(`{
	"mappings": {
		"properties": {
			"id":         { "type": "keyword" },
			"iso_code":   { "type": "keyword" },
			"chunk":      { "type": "text" },
			"chunk_type": { "type": "keyword" },
			"table_md":   { "type": "text", "index": false },
			"image_id":   { "type": "keyword" },
			"image_url":  { "type": "keyword", "index": false },
			"embedding": {
				"type": "dense_vector",
				"dims": %d,
				"index": true,
				"similarity": "l2_norm"
			}
		}
	}
}`, dims)
}

// EnsureIndex creates indexName with IndexMapping(dims) unless it already exists.
func EnsureIndex(ctx context.Context, client *elasticsearch.Client, indexName string, dims int) error {
	res, err := client.Indices.Exists([]string{indexName}, client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %q: %w", indexName, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("[ES] index '%s' already exists", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("check index %q: unexpected status %d", indexName, res.StatusCode)
	}

	res, err = client.Indices.Create(
		indexName,
		client.Indices.Create.WithContext(ctx),
		client.Indices.Create.WithBody(strings.NewReader(IndexMapping(dims))),
	)
	if err != nil {
		return fmt.Errorf("create index %q: %w", indexName, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index %q: %s", indexName, res.String())
	}
	log.Infof("[ES] index '%s' created with %d dimensions", indexName, dims)
	return nil
}
