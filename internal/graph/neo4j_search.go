package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/triepod-ai/memory-graph/pkg/errors"
)

// matchPredicate is the shared WHERE clause for substring search: the query
// must appear case-insensitively in the name, the type, or any observation.
const matchPredicate = `
	toLower(e.name) CONTAINS toLower($query)
	OR toLower(e.entityType) CONTAINS toLower($query)
	OR any(obs IN coalesce(e.observations, []) WHERE toLower(obs) CONTAINS toLower($query))
`

// SearchNodes returns every matching entity, unbounded, plus the induced
// relation subgraph.
func (s *Neo4jStore) SearchNodes(ctx context.Context, query string) (*KnowledgeGraph, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (e:Memory)
		WHERE `+matchPredicate+`
		RETURN e.name AS name, e.entityType AS entityType, coalesce(e.observations, []) AS observations
		ORDER BY e.name
	`, map[string]any{"query": query})
	if err != nil {
		return nil, errors.NewGraphQueryFailed("searchNodes", err)
	}
	entities, err := collectEntities(ctx, result)
	if err != nil {
		return nil, errors.NewGraphQueryFailed("searchNodes", err)
	}

	names := make([]string, 0, len(entities))
	for _, e := range entities {
		names = append(names, e.Name)
	}

	result, err = session.Run(ctx, `
		MATCH (from:Memory)-[r:RELATES]->(to:Memory)
		WHERE from.name IN $names AND to.name IN $names
		RETURN from.name AS from, to.name AS to, r.relationType AS relationType
	`, map[string]any{"names": names})
	if err != nil {
		return nil, errors.NewGraphQueryFailed("searchNodes", err)
	}
	relations, err := collectRelations(ctx, result)
	if err != nil {
		return nil, errors.NewGraphQueryFailed("searchNodes", err)
	}

	return &KnowledgeGraph{Entities: entities, Relations: relations}, nil
}

// SearchWithRelationships runs the bounded relationship-aware search. The
// entity cap is applied at the query level; candidate relations need only
// one endpoint in the matched set, so neighbors just outside the match
// surface too. Grouping and truncation are shared with the file backend.
func (s *Neo4jStore) SearchWithRelationships(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error) {
	opts = opts.withDefaults()

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (e:Memory)
		WHERE `+matchPredicate+`
		RETURN count(e) AS total
	`, map[string]any{"query": query})
	if err != nil {
		return nil, errors.NewGraphQueryFailed("searchWithRelationships", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return nil, errors.NewGraphQueryFailed("searchWithRelationships", err)
	}
	total := getIntFromRecord(record, "total")

	result, err = session.Run(ctx, `
		MATCH (e:Memory)
		WHERE `+matchPredicate+`
		RETURN e.name AS name, e.entityType AS entityType, coalesce(e.observations, []) AS observations
		ORDER BY e.name
		LIMIT $maxEntities
	`, map[string]any{"query": query, "maxEntities": opts.MaxEntities})
	if err != nil {
		return nil, errors.NewGraphQueryFailed("searchWithRelationships", err)
	}
	entities, err := collectEntities(ctx, result)
	if err != nil {
		return nil, errors.NewGraphQueryFailed("searchWithRelationships", err)
	}

	names := make([]string, 0, len(entities))
	for _, e := range entities {
		names = append(names, e.Name)
	}

	result, err = session.Run(ctx, `
		MATCH (from:Memory)-[r:RELATES]->(to:Memory)
		WHERE from.name IN $names OR to.name IN $names
		RETURN from.name AS from, to.name AS to, r.relationType AS relationType
	`, map[string]any{"names": names})
	if err != nil {
		return nil, errors.NewGraphQueryFailed("searchWithRelationships", err)
	}
	candidates, err := collectRelations(ctx, result)
	if err != nil {
		return nil, errors.NewGraphQueryFailed("searchWithRelationships", err)
	}

	matchedNames := entityNameSet(entities)
	relations, limited := boundRelationGroups(matchedNames, candidates, opts.MaxRelationshipsPerEntity)

	return &SearchResponse{
		Entities:  entities,
		Relations: relations,
		Metadata: SearchMetadata{
			TotalEntitiesFound:   total,
			RelationshipsLimited: limited,
			BackendUsed:          BackendNeo4j,
		},
	}, nil
}
