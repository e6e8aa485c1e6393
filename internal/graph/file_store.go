package graph

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/triepod-ai/memory-graph/pkg/errors"
)

// fileRecord is one line of the fallback file. Type discriminates entity
// records from relation records.
type fileRecord struct {
	Type string `json:"type"`

	// Entity fields
	Name         string   `json:"name,omitempty"`
	EntityType   string   `json:"entityType,omitempty"`
	Observations []string `json:"observations,omitempty"`

	// Relation fields
	From         string `json:"from,omitempty"`
	To           string `json:"to,omitempty"`
	RelationType string `json:"relationType,omitempty"`
}

const (
	recordTypeEntity   = "entity"
	recordTypeRelation = "relation"
)

// FileStore persists an entire knowledge graph to a newline-delimited JSON
// file, one record per line. It knows nothing about routing or fallback;
// the FileRepository layers operation semantics on top.
type FileStore struct {
	path string
}

// NewFileStore creates a store for the given file path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the whole graph from disk. A missing file is an empty graph.
func (s *FileStore) Load() (*KnowledgeGraph, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &KnowledgeGraph{Entities: []Entity{}, Relations: []Relation{}}, nil
		}
		return nil, errors.NewStorageRead(s.path, err)
	}
	defer f.Close()

	graph := &KnowledgeGraph{Entities: []Entity{}, Relations: []Relation{}}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec fileRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, errors.NewStorageRead(s.path, fmt.Errorf("line %d: %w", lineNo, err))
		}
		switch rec.Type {
		case recordTypeEntity:
			obs := rec.Observations
			if obs == nil {
				obs = []string{}
			}
			graph.Entities = append(graph.Entities, Entity{
				Name:         rec.Name,
				EntityType:   rec.EntityType,
				Observations: obs,
			})
		case recordTypeRelation:
			graph.Relations = append(graph.Relations, Relation{
				From:         rec.From,
				To:           rec.To,
				RelationType: rec.RelationType,
			})
		default:
			return nil, errors.NewStorageRead(s.path, fmt.Errorf("line %d: unknown record type %q", lineNo, rec.Type))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewStorageRead(s.path, err)
	}
	return graph, nil
}

// Save replaces the file's entire content with the given graph, entities
// first then relations. The parent directory is created if absent.
func (s *FileStore) Save(graph *KnowledgeGraph) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.NewStorageWrite(s.path, err)
		}
	}

	f, err := os.Create(s.path)
	if err != nil {
		return errors.NewStorageWrite(s.path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, e := range graph.Entities {
		rec := fileRecord{
			Type:         recordTypeEntity,
			Name:         e.Name,
			EntityType:   e.EntityType,
			Observations: e.Observations,
		}
		if err := enc.Encode(rec); err != nil {
			return errors.NewStorageWrite(s.path, err)
		}
	}
	for _, r := range graph.Relations {
		rec := fileRecord{
			Type:         recordTypeRelation,
			From:         r.From,
			To:           r.To,
			RelationType: r.RelationType,
		}
		if err := enc.Encode(rec); err != nil {
			return errors.NewStorageWrite(s.path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return errors.NewStorageWrite(s.path, err)
	}
	return nil
}
