package graph

import (
	"context"
	"sync"

	"github.com/triepod-ai/memory-graph/pkg/errors"
	"github.com/triepod-ai/memory-graph/pkg/logger"
	"go.uber.org/zap"
)

// FileRepository implements Store on top of a FileStore. Every call reads
// the whole graph, applies the operation in memory, and writes the file
// back. A single mutex serializes access so concurrent fallback callers
// cannot lose each other's writes.
type FileRepository struct {
	store  *FileStore
	logger *zap.Logger
	mu     sync.Mutex
}

// NewFileRepository creates a repository backed by the given file path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		store:  NewFileStore(path),
		logger: logger.Get(),
	}
}

var _ Store = (*FileRepository)(nil)

// CreateEntities upserts entities by name. Existing entities have their
// type overwritten and receive only observations not already present.
func (r *FileRepository) CreateEntities(ctx context.Context, entities []Entity) ([]Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	graph, err := r.store.Load()
	if err != nil {
		return nil, err
	}

	byName := make(map[string]int, len(graph.Entities))
	for i, e := range graph.Entities {
		byName[e.Name] = i
	}

	affected := make([]Entity, 0, len(entities))
	for _, in := range entities {
		in.Observations = dedupeStrings(in.Observations)
		if idx, ok := byName[in.Name]; ok {
			existing := &graph.Entities[idx]
			existing.EntityType = in.EntityType
			existing.Observations = mergeObservations(existing.Observations, in.Observations)
			affected = append(affected, *existing)
			continue
		}
		graph.Entities = append(graph.Entities, in)
		byName[in.Name] = len(graph.Entities) - 1
		affected = append(affected, in)
	}

	if err := r.store.Save(graph); err != nil {
		return nil, err
	}
	return affected, nil
}

// CreateRelations creates relations whose endpoints both exist and whose
// triple is not already present. Skipped relations are logged and excluded
// from the result.
func (r *FileRepository) CreateRelations(ctx context.Context, relations []Relation) ([]Relation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	graph, err := r.store.Load()
	if err != nil {
		return nil, err
	}

	names := entityNameSet(graph.Entities)
	existing := make(map[Relation]bool, len(graph.Relations))
	for _, rel := range graph.Relations {
		existing[rel] = true
	}

	created := make([]Relation, 0, len(relations))
	for _, rel := range relations {
		if !names[rel.From] || !names[rel.To] {
			r.logger.Debug("skipping relation with missing endpoint",
				zap.String("from", rel.From),
				zap.String("to", rel.To),
				zap.String("relation_type", rel.RelationType),
			)
			continue
		}
		if existing[rel] {
			continue
		}
		existing[rel] = true
		graph.Relations = append(graph.Relations, rel)
		created = append(created, rel)
	}

	if err := r.store.Save(graph); err != nil {
		return nil, err
	}
	return created, nil
}

// AddObservations appends observation strings not already present. The
// named entity must exist.
func (r *FileRepository) AddObservations(ctx context.Context, additions []ObservationAddition) ([]ObservationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	graph, err := r.store.Load()
	if err != nil {
		return nil, err
	}

	byName := make(map[string]int, len(graph.Entities))
	for i, e := range graph.Entities {
		byName[e.Name] = i
	}

	results := make([]ObservationResult, 0, len(additions))
	for _, add := range additions {
		idx, ok := byName[add.EntityName]
		if !ok {
			return nil, errors.NewEntityNotFound(add.EntityName)
		}
		entity := &graph.Entities[idx]
		added := make([]string, 0, len(add.Contents))
		for _, content := range dedupeStrings(add.Contents) {
			if containsString(entity.Observations, content) {
				continue
			}
			entity.Observations = append(entity.Observations, content)
			added = append(added, content)
		}
		results = append(results, ObservationResult{
			EntityName:        add.EntityName,
			AddedObservations: added,
		})
	}

	if err := r.store.Save(graph); err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteEntities removes the named entities and every relation touching
// them. Missing names are ignored.
func (r *FileRepository) DeleteEntities(ctx context.Context, names []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	graph, err := r.store.Load()
	if err != nil {
		return err
	}

	doomed := make(map[string]bool, len(names))
	for _, name := range names {
		doomed[name] = true
	}

	entities := graph.Entities[:0]
	for _, e := range graph.Entities {
		if !doomed[e.Name] {
			entities = append(entities, e)
		}
	}
	graph.Entities = entities

	relations := graph.Relations[:0]
	for _, rel := range graph.Relations {
		if !doomed[rel.From] && !doomed[rel.To] {
			relations = append(relations, rel)
		}
	}
	graph.Relations = relations

	return r.store.Save(graph)
}

// DeleteObservations removes matching observation strings. Missing entities
// or observations are silent no-ops.
func (r *FileRepository) DeleteObservations(ctx context.Context, deletions []ObservationDeletion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	graph, err := r.store.Load()
	if err != nil {
		return err
	}

	byName := make(map[string]int, len(graph.Entities))
	for i, e := range graph.Entities {
		byName[e.Name] = i
	}

	for _, del := range deletions {
		idx, ok := byName[del.EntityName]
		if !ok {
			continue
		}
		entity := &graph.Entities[idx]
		remove := make(map[string]bool, len(del.Observations))
		for _, obs := range del.Observations {
			remove[obs] = true
		}
		kept := entity.Observations[:0]
		for _, obs := range entity.Observations {
			if !remove[obs] {
				kept = append(kept, obs)
			}
		}
		entity.Observations = kept
	}

	return r.store.Save(graph)
}

// DeleteRelations removes relations matching the exact triple. Non-existent
// triples are silent no-ops.
func (r *FileRepository) DeleteRelations(ctx context.Context, relations []Relation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	graph, err := r.store.Load()
	if err != nil {
		return err
	}

	doomed := make(map[Relation]bool, len(relations))
	for _, rel := range relations {
		doomed[rel] = true
	}

	kept := graph.Relations[:0]
	for _, rel := range graph.Relations {
		if !doomed[rel] {
			kept = append(kept, rel)
		}
	}
	graph.Relations = kept

	return r.store.Save(graph)
}

// ReadGraph returns the full graph, or with a positive limit a stable page
// of entities (file order) plus the relations induced by that page.
func (r *FileRepository) ReadGraph(ctx context.Context, opts ReadOptions) (*KnowledgeGraph, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	graph, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	if opts.Limit <= 0 {
		return graph, nil
	}

	start := opts.Offset
	if start < 0 {
		start = 0
	}
	if start > len(graph.Entities) {
		start = len(graph.Entities)
	}
	end := start + opts.Limit
	if end > len(graph.Entities) {
		end = len(graph.Entities)
	}
	page := graph.Entities[start:end]

	return &KnowledgeGraph{
		Entities:  page,
		Relations: induceRelations(entityNameSet(page), graph.Relations),
	}, nil
}

// SearchNodes returns every entity matching the query plus the induced
// relation subgraph, unbounded.
func (r *FileRepository) SearchNodes(ctx context.Context, query string) (*KnowledgeGraph, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	graph, err := r.store.Load()
	if err != nil {
		return nil, err
	}

	matched := make([]Entity, 0)
	for _, e := range graph.Entities {
		if entityMatches(e, query) {
			matched = append(matched, e)
		}
	}

	return &KnowledgeGraph{
		Entities:  matched,
		Relations: induceRelations(entityNameSet(matched), graph.Relations),
	}, nil
}

// SearchWithRelationships runs the bounded relationship-aware search. The
// file backend filters all entities, then slices the first MaxEntities
// matches in file order.
func (r *FileRepository) SearchWithRelationships(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error) {
	opts = opts.withDefaults()

	r.mu.Lock()
	defer r.mu.Unlock()

	graph, err := r.store.Load()
	if err != nil {
		return nil, err
	}

	matched := make([]Entity, 0)
	for _, e := range graph.Entities {
		if entityMatches(e, query) {
			matched = append(matched, e)
		}
	}
	total := len(matched)
	if len(matched) > opts.MaxEntities {
		matched = matched[:opts.MaxEntities]
	}

	matchedNames := entityNameSet(matched)
	candidates := make([]Relation, 0)
	for _, rel := range graph.Relations {
		if matchedNames[rel.From] || matchedNames[rel.To] {
			candidates = append(candidates, rel)
		}
	}

	relations, limited := boundRelationGroups(matchedNames, candidates, opts.MaxRelationshipsPerEntity)

	return &SearchResponse{
		Entities:  matched,
		Relations: relations,
		Metadata: SearchMetadata{
			TotalEntitiesFound:   total,
			RelationshipsLimited: limited,
			BackendUsed:          BackendFile,
		},
	}, nil
}

// OpenNodes returns the named entities plus the induced relation subgraph.
func (r *FileRepository) OpenNodes(ctx context.Context, names []string) (*KnowledgeGraph, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	graph, err := r.store.Load()
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	opened := make([]Entity, 0, len(names))
	for _, e := range graph.Entities {
		if wanted[e.Name] {
			opened = append(opened, e)
		}
	}

	return &KnowledgeGraph{
		Entities:  opened,
		Relations: induceRelations(entityNameSet(opened), graph.Relations),
	}, nil
}

// GraphSummary returns graph totals, type histograms, and a bounded entity
// list.
func (r *FileRepository) GraphSummary(ctx context.Context, limit int) (*GraphSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	graph, err := r.store.Load()
	if err != nil {
		return nil, err
	}

	summary := &GraphSummary{
		TotalEntities:  len(graph.Entities),
		TotalRelations: len(graph.Relations),
		EntityTypes:    make(map[string]int),
		RelationTypes:  make(map[string]int),
		Entities:       make([]EntitySummary, 0, limit),
		Limit:          limit,
	}
	for _, e := range graph.Entities {
		summary.EntityTypes[e.EntityType]++
	}
	for _, rel := range graph.Relations {
		summary.RelationTypes[rel.RelationType]++
	}
	for i, e := range graph.Entities {
		if i >= limit {
			summary.HasMore = true
			break
		}
		summary.Entities = append(summary.Entities, EntitySummary{Name: e.Name, EntityType: e.EntityType})
	}
	return summary, nil
}

// mergeObservations appends the incoming strings not already present,
// preserving first-seen order.
func mergeObservations(existing, incoming []string) []string {
	merged := existing
	for _, obs := range incoming {
		if !containsString(merged, obs) {
			merged = append(merged, obs)
		}
	}
	return merged
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
