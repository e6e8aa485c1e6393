package graph

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGraph() *KnowledgeGraph {
	return &KnowledgeGraph{
		Entities: []Entity{
			{Name: "alice", EntityType: "person", Observations: []string{"likes go", "works remotely"}},
			{Name: "acme", EntityType: "company", Observations: []string{}},
		},
		Relations: []Relation{
			{From: "alice", To: "acme", RelationType: "works_at"},
		},
	}
}

func TestFileStore_MissingFileIsEmptyGraph(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.jsonl"))

	graph, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, graph.Entities)
	assert.Empty(t, graph.Relations)
}

func TestFileStore_RoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "memory.jsonl"))
	original := testGraph()

	require.NoError(t, store.Save(original))
	loaded, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, original.Entities, loaded.Entities)
	assert.Equal(t, original.Relations, loaded.Relations)

	// save(load()) must be a no-op
	require.NoError(t, store.Save(loaded))
	again, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, loaded, again)
}

func TestFileStore_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "memory.jsonl")
	store := NewFileStore(path)

	require.NoError(t, store.Save(testGraph()))

	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestFileStore_LineFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.jsonl")
	store := NewFileStore(path)
	require.NoError(t, store.Save(testGraph()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	// entities serialize before relations, each line tagged with its type
	assert.Contains(t, lines[0], `"type":"entity"`)
	assert.Contains(t, lines[1], `"type":"entity"`)
	assert.Contains(t, lines[2], `"type":"relation"`)
}

func TestFileStore_SkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.jsonl")
	content := `{"type":"entity","name":"alice","entityType":"person","observations":["o1"]}

{"type":"relation","from":"alice","to":"alice","relationType":"self"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	graph, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Len(t, graph.Entities, 1)
	assert.Len(t, graph.Relations, 1)
}

func TestFileStore_RejectsUnknownRecordType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"widget"}`+"\n"), 0o644))

	_, err := NewFileStore(path).Load()
	require.Error(t, err)
}
