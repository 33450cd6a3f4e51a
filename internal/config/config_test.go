package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
server:
  port: "9090"
elasticsearch:
  addresses: "http://es:9200"
  index_name: "legal-index"
model:
  endpoint: "https://example.openai.azure.com"
  api_key: "secret"
  chat_deployment: "gpt"
  embedding_deployment: "embed"
minio:
  endpoint: "minio:9000"
  access_key_id: "minio"
  secret_access_key: "minio123"
kafka:
  brokers: "kafka:9092"
database:
  redis:
    addr: "redis:6379"
retrieval:
  top_k: 10
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFileWithDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 10, cfg.Retrieval.TopK)
	assert.Equal(t, 15*time.Second, cfg.Retrieval.SearchTimeout)
	assert.Equal(t, 2000, cfg.Ingestion.ChunkMaxChars)
	assert.Equal(t, 1536, cfg.Model.Dimensions)
	assert.Equal(t, "azure", cfg.Model.Provider)
	assert.Equal(t, "legal-documents", cfg.MinIO.BucketName)
	assert.Equal(t, 2, cfg.Retry.MaxRetries)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("JURIS_RETRIEVAL_TOP_K", "7")
	t.Setenv("JURIS_RETRIEVAL_SEARCH_TIMEOUT", "3s")
	t.Setenv("JURIS_MODEL_VISION_DEPLOYMENT", "vision")

	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Retrieval.TopK)
	assert.Equal(t, 3*time.Second, cfg.Retrieval.SearchTimeout)
	assert.Equal(t, "vision", cfg.Model.VisionDeployment)
}

func TestLoadMissingFileUsesEnvironment(t *testing.T) {
	t.Setenv("JURIS_ELASTICSEARCH_INDEX_NAME", "from-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Elasticsearch.IndexName)
}

func TestValidateListsMissingSettings(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	err = cfg.Validate()
	require.ErrorIs(t, err, ErrMissingSetting)
	assert.Contains(t, err.Error(), "JURIS_ELASTICSEARCH_ADDRESSES")
	assert.Contains(t, err.Error(), "JURIS_MODEL_API_KEY")
	assert.Contains(t, err.Error(), "JURIS_DATABASE_REDIS_ADDR")
}

func TestValidateRejectsNonPositiveDimensions(t *testing.T) {
	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)
	cfg.Model.Dimensions = 0
	assert.ErrorIs(t, cfg.Validate(), ErrMissingSetting)
}
