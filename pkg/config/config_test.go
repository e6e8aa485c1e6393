package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Port)
	assert.NotEmpty(t, cfg.MemoryFilePath)
}

func TestNeo4jConfigured(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.Neo4jConfigured())

	cfg.Neo4jURI = "bolt://localhost:7687"
	cfg.Neo4jUser = "neo4j"
	assert.False(t, cfg.Neo4jConfigured(), "password still missing")

	cfg.Neo4jPassword = "password"
	assert.True(t, cfg.Neo4jConfigured())
}

func TestValidate(t *testing.T) {
	cfg := &Config{Port: "8080", MemoryFilePath: "memory.jsonl"}
	assert.NoError(t, cfg.Validate())

	cfg.MemoryFilePath = ""
	assert.Error(t, cfg.Validate())
}
