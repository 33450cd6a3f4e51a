package es

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"juris-rag-go/internal/config"
)

func TestIndexMapping(t *testing.T) {
	var mapping struct {
		Mappings struct {
			Properties map[string]map[string]interface{} `json:"properties"`
		} `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal([]byte(IndexMapping(1536)), &mapping))

	props := mapping.Mappings.Properties
	assert.Equal(t, "keyword", props["iso_code"]["type"])
	assert.Equal(t, "dense_vector", props["embedding"]["type"])
	assert.Equal(t, float64(1536), props["embedding"]["dims"])
	assert.Equal(t, "l2_norm", props["embedding"]["similarity"])
}

func TestNewClientRequiresAddress(t *testing.T) {
	_, err := NewClient(config.ElasticsearchConfig{Addresses: " , "}, nil)
	assert.Error(t, err)

	client, err := NewClient(config.ElasticsearchConfig{Addresses: "http://es1:9200, http://es2:9200", APIKey: "key"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, client)
}
