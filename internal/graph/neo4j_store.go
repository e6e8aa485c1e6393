package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/triepod-ai/memory-graph/pkg/errors"
	"github.com/triepod-ai/memory-graph/pkg/logger"
	"go.uber.org/zap"
)

// Neo4jStore implements Store against the primary graph database. Entities
// are :Memory nodes keyed by name; relations are :RELATES edges carrying
// the relation type as a property so Cypher stays fully parameterized.
// Every operation opens one session and releases it on every exit path.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewNeo4jStore creates a store over an existing driver.
func NewNeo4jStore(driver neo4j.DriverWithContext) *Neo4jStore {
	return &Neo4jStore{
		driver: driver,
		logger: logger.Get(),
	}
}

var _ Store = (*Neo4jStore)(nil)

// Close closes the underlying driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// CreateEntities upserts entities by name, overwriting the type and
// appending only observations not already present.
func (s *Neo4jStore) CreateEntities(ctx context.Context, entities []Entity) ([]Entity, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	params := make([]map[string]any, 0, len(entities))
	for _, e := range entities {
		params = append(params, map[string]any{
			"name":         e.Name,
			"entityType":   e.EntityType,
			"observations": dedupeStrings(e.Observations),
		})
	}

	query := `
		UNWIND $entities AS entity
		MERGE (e:Memory {name: entity.name})
		ON CREATE SET e.observations = []
		SET e.entityType = entity.entityType
		WITH e, [obs IN entity.observations WHERE NOT obs IN e.observations] AS fresh
		SET e.observations = e.observations + fresh
		RETURN e.name AS name, e.entityType AS entityType, e.observations AS observations
	`

	result, err := session.Run(ctx, query, map[string]any{"entities": params})
	if err != nil {
		return nil, errors.NewGraphQueryFailed("createEntities", err)
	}

	affected, err := collectEntities(ctx, result)
	if err != nil {
		return nil, errors.NewGraphQueryFailed("createEntities", err)
	}
	return affected, nil
}

// CreateRelations creates relations whose endpoints exist and whose triple
// is new. Relations with a missing endpoint drop out of the MATCH and are
// excluded from the result.
func (s *Neo4jStore) CreateRelations(ctx context.Context, relations []Relation) ([]Relation, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	deduped := dedupeRelations(relations)
	query := `
		UNWIND $relations AS rel
		MATCH (from:Memory {name: rel.from})
		MATCH (to:Memory {name: rel.to})
		MERGE (from)-[r:RELATES {relationType: rel.relationType}]->(to)
		ON CREATE SET r.wasCreated = true
		WITH rel, r
		WHERE r.wasCreated = true
		REMOVE r.wasCreated
		RETURN rel.from AS from, rel.to AS to, rel.relationType AS relationType
	`

	result, err := session.Run(ctx, query, map[string]any{"relations": relationParams(deduped)})
	if err != nil {
		return nil, errors.NewGraphQueryFailed("createRelations", err)
	}

	created, err := collectRelations(ctx, result)
	if err != nil {
		return nil, errors.NewGraphQueryFailed("createRelations", err)
	}
	if skipped := len(deduped) - len(created); skipped > 0 {
		s.logger.Debug("relations skipped during create",
			zap.Int("requested", len(deduped)),
			zap.Int("created", len(created)),
		)
	}
	return created, nil
}

// AddObservations appends observation strings not already present. Every
// named entity must exist.
func (s *Neo4jStore) AddObservations(ctx context.Context, additions []ObservationAddition) ([]ObservationResult, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	params := make([]map[string]any, 0, len(additions))
	for _, add := range additions {
		params = append(params, map[string]any{
			"entityName": add.EntityName,
			"contents":   dedupeStrings(add.Contents),
		})
	}

	query := `
		UNWIND $observations AS obs
		MATCH (e:Memory {name: obs.entityName})
		WITH e, obs, [c IN obs.contents WHERE NOT c IN coalesce(e.observations, [])] AS fresh
		SET e.observations = coalesce(e.observations, []) + fresh
		RETURN obs.entityName AS entityName, fresh AS addedObservations
	`

	result, err := session.Run(ctx, query, map[string]any{"observations": params})
	if err != nil {
		return nil, errors.NewGraphQueryFailed("addObservations", err)
	}

	rows := make([]ObservationResult, 0, len(additions))
	for result.Next(ctx) {
		record := result.Record()
		rows = append(rows, ObservationResult{
			EntityName:        getStringFromRecord(record, "entityName"),
			AddedObservations: getStringSliceFromRecord(record, "addedObservations"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, errors.NewGraphQueryFailed("addObservations", err)
	}

	return pairObservationResults(additions, rows)
}

// pairObservationResults matches query rows back to their additions. Rows
// come back in UNWIND order minus the additions whose entity the MATCH never
// found, so the first gap names a missing entity. Pairing by position keeps
// additions that repeat an entity name reported one result per addition.
func pairObservationResults(additions []ObservationAddition, rows []ObservationResult) ([]ObservationResult, error) {
	results := make([]ObservationResult, 0, len(additions))
	next := 0
	for _, add := range additions {
		if next >= len(rows) || rows[next].EntityName != add.EntityName {
			return nil, errors.NewEntityNotFound(add.EntityName)
		}
		results = append(results, rows[next])
		next++
	}
	return results, nil
}

// DeleteEntities removes the named entities and cascades to their
// relations via DETACH DELETE. Missing names are ignored.
func (s *Neo4jStore) DeleteEntities(ctx context.Context, names []string) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		UNWIND $names AS name
		MATCH (e:Memory {name: name})
		DETACH DELETE e
	`

	if _, err := session.Run(ctx, query, map[string]any{"names": names}); err != nil {
		return errors.NewGraphQueryFailed("deleteEntities", err)
	}
	return nil
}

// DeleteObservations removes matching observation strings; misses are
// silent no-ops.
func (s *Neo4jStore) DeleteObservations(ctx context.Context, deletions []ObservationDeletion) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	params := make([]map[string]any, 0, len(deletions))
	for _, del := range deletions {
		params = append(params, map[string]any{
			"entityName":   del.EntityName,
			"observations": del.Observations,
		})
	}

	query := `
		UNWIND $deletions AS d
		MATCH (e:Memory {name: d.entityName})
		SET e.observations = [o IN coalesce(e.observations, []) WHERE NOT o IN d.observations]
	`

	if _, err := session.Run(ctx, query, map[string]any{"deletions": params}); err != nil {
		return errors.NewGraphQueryFailed("deleteObservations", err)
	}
	return nil
}

// DeleteRelations removes relations matching the exact triple; misses are
// silent no-ops.
func (s *Neo4jStore) DeleteRelations(ctx context.Context, relations []Relation) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		UNWIND $relations AS rel
		MATCH (from:Memory {name: rel.from})-[r:RELATES {relationType: rel.relationType}]->(to:Memory {name: rel.to})
		DELETE r
	`

	if _, err := session.Run(ctx, query, map[string]any{"relations": relationParams(relations)}); err != nil {
		return errors.NewGraphQueryFailed("deleteRelations", err)
	}
	return nil
}

// ReadGraph returns the full graph, or with a positive limit a name-ordered
// entity page plus the relations induced by that page.
func (s *Neo4jStore) ReadGraph(ctx context.Context, opts ReadOptions) (*KnowledgeGraph, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	entityQuery := `
		MATCH (e:Memory)
		RETURN e.name AS name, e.entityType AS entityType, coalesce(e.observations, []) AS observations
		ORDER BY e.name
	`
	params := map[string]any{}
	if opts.Limit > 0 {
		entityQuery += ` SKIP $offset LIMIT $limit`
		offset := opts.Offset
		if offset < 0 {
			offset = 0
		}
		params["offset"] = offset
		params["limit"] = opts.Limit
	}

	result, err := session.Run(ctx, entityQuery, params)
	if err != nil {
		return nil, errors.NewGraphQueryFailed("readGraph", err)
	}
	entities, err := collectEntities(ctx, result)
	if err != nil {
		return nil, errors.NewGraphQueryFailed("readGraph", err)
	}

	names := make([]string, 0, len(entities))
	for _, e := range entities {
		names = append(names, e.Name)
	}

	relationQuery := `
		MATCH (from:Memory)-[r:RELATES]->(to:Memory)
		WHERE from.name IN $names AND to.name IN $names
		RETURN from.name AS from, to.name AS to, r.relationType AS relationType
	`
	result, err = session.Run(ctx, relationQuery, map[string]any{"names": names})
	if err != nil {
		return nil, errors.NewGraphQueryFailed("readGraph", err)
	}
	relations, err := collectRelations(ctx, result)
	if err != nil {
		return nil, errors.NewGraphQueryFailed("readGraph", err)
	}

	return &KnowledgeGraph{Entities: entities, Relations: relations}, nil
}

// OpenNodes returns the named entities plus the induced relation subgraph.
func (s *Neo4jStore) OpenNodes(ctx context.Context, names []string) (*KnowledgeGraph, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	entityQuery := `
		MATCH (e:Memory)
		WHERE e.name IN $names
		RETURN e.name AS name, e.entityType AS entityType, coalesce(e.observations, []) AS observations
		ORDER BY e.name
	`
	result, err := session.Run(ctx, entityQuery, map[string]any{"names": names})
	if err != nil {
		return nil, errors.NewGraphQueryFailed("openNodes", err)
	}
	entities, err := collectEntities(ctx, result)
	if err != nil {
		return nil, errors.NewGraphQueryFailed("openNodes", err)
	}

	found := make([]string, 0, len(entities))
	for _, e := range entities {
		found = append(found, e.Name)
	}

	relationQuery := `
		MATCH (from:Memory)-[r:RELATES]->(to:Memory)
		WHERE from.name IN $names AND to.name IN $names
		RETURN from.name AS from, to.name AS to, r.relationType AS relationType
	`
	result, err = session.Run(ctx, relationQuery, map[string]any{"names": found})
	if err != nil {
		return nil, errors.NewGraphQueryFailed("openNodes", err)
	}
	relations, err := collectRelations(ctx, result)
	if err != nil {
		return nil, errors.NewGraphQueryFailed("openNodes", err)
	}

	return &KnowledgeGraph{Entities: entities, Relations: relations}, nil
}

// GraphSummary returns graph totals, type histograms, and a bounded entity
// list.
func (s *Neo4jStore) GraphSummary(ctx context.Context, limit int) (*GraphSummary, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	summary := &GraphSummary{
		EntityTypes:   make(map[string]int),
		RelationTypes: make(map[string]int),
		Entities:      make([]EntitySummary, 0, limit),
		Limit:         limit,
	}

	result, err := session.Run(ctx, `
		MATCH (e:Memory)
		RETURN coalesce(e.entityType, '') AS entityType, count(*) AS count
	`, nil)
	if err != nil {
		return nil, errors.NewGraphQueryFailed("graphSummary", err)
	}
	for result.Next(ctx) {
		record := result.Record()
		count := getIntFromRecord(record, "count")
		summary.EntityTypes[getStringFromRecord(record, "entityType")] = count
		summary.TotalEntities += count
	}
	if err := result.Err(); err != nil {
		return nil, errors.NewGraphQueryFailed("graphSummary", err)
	}

	result, err = session.Run(ctx, `
		MATCH ()-[r:RELATES]->()
		RETURN coalesce(r.relationType, '') AS relationType, count(*) AS count
	`, nil)
	if err != nil {
		return nil, errors.NewGraphQueryFailed("graphSummary", err)
	}
	for result.Next(ctx) {
		record := result.Record()
		count := getIntFromRecord(record, "count")
		summary.RelationTypes[getStringFromRecord(record, "relationType")] = count
		summary.TotalRelations += count
	}
	if err := result.Err(); err != nil {
		return nil, errors.NewGraphQueryFailed("graphSummary", err)
	}

	result, err = session.Run(ctx, `
		MATCH (e:Memory)
		RETURN e.name AS name, e.entityType AS entityType
		ORDER BY e.name
		LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, errors.NewGraphQueryFailed("graphSummary", err)
	}
	for result.Next(ctx) {
		record := result.Record()
		summary.Entities = append(summary.Entities, EntitySummary{
			Name:       getStringFromRecord(record, "name"),
			EntityType: getStringFromRecord(record, "entityType"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, errors.NewGraphQueryFailed("graphSummary", err)
	}
	summary.HasMore = summary.TotalEntities > len(summary.Entities)

	return summary, nil
}

func relationParams(relations []Relation) []map[string]any {
	params := make([]map[string]any, 0, len(relations))
	for _, rel := range relations {
		params = append(params, map[string]any{
			"from":         rel.From,
			"to":           rel.To,
			"relationType": rel.RelationType,
		})
	}
	return params
}
