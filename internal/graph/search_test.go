package graph

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityMatches(t *testing.T) {
	entity := Entity{
		Name:         "Payment-Service",
		EntityType:   "Microservice",
		Observations: []string{"Written in Go", "Deployed on Fridays"},
	}

	assert.True(t, entityMatches(entity, "payment"))
	assert.True(t, entityMatches(entity, "MICRO"))
	assert.True(t, entityMatches(entity, "fridays"))
	assert.False(t, entityMatches(entity, "ruby"))
}

func TestBoundRelationGroups_Caps(t *testing.T) {
	matched := map[string]bool{"hub": true}
	candidates := []Relation{
		{From: "hub", To: "n1", RelationType: "links"},
		{From: "hub", To: "n2", RelationType: "links"},
		{From: "hub", To: "n3", RelationType: "links"},
		{From: "hub", To: "n1", RelationType: "links"}, // duplicate triple
	}

	kept, limited := boundRelationGroups(matched, candidates, 2)
	assert.Len(t, kept, 2)
	assert.True(t, limited)

	kept, limited = boundRelationGroups(matched, candidates, 3)
	assert.Len(t, kept, 3)
	assert.False(t, limited)
}

func TestBoundRelationGroups_GroupsIndependently(t *testing.T) {
	matched := map[string]bool{"a": true, "b": true}
	candidates := []Relation{
		{From: "a", To: "x1", RelationType: "r"},
		{From: "a", To: "x2", RelationType: "r"},
		{From: "b", To: "y1", RelationType: "r"},
	}

	kept, limited := boundRelationGroups(matched, candidates, 2)
	assert.Len(t, kept, 3)
	assert.False(t, limited)
}

func TestPrimaryEndpoint_TieBreak(t *testing.T) {
	matched := map[string]bool{"alpha": true, "beta": true}

	// both endpoints matched: lexicographically smaller name wins
	assert.Equal(t, "alpha", primaryEndpoint(Relation{From: "beta", To: "alpha"}, matched))
	assert.Equal(t, "alpha", primaryEndpoint(Relation{From: "alpha", To: "beta"}, matched))

	// one endpoint matched: that endpoint wins regardless of order
	single := map[string]bool{"beta": true}
	assert.Equal(t, "beta", primaryEndpoint(Relation{From: "alpha", To: "beta"}, single))
	assert.Equal(t, "beta", primaryEndpoint(Relation{From: "beta", To: "alpha"}, single))
}

func TestDedupeStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, dedupeStrings([]string{"a", "b", "a", "c", "b"}))
	assert.Empty(t, dedupeStrings(nil))
}

func TestSearchNodes_InducedSubgraph(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.CreateEntities(ctx, []Entity{
		{Name: "web-frontend", EntityType: "service"},
		{Name: "web-backend", EntityType: "service"},
		{Name: "database", EntityType: "infrastructure"},
	})
	require.NoError(t, err)
	_, err = repo.CreateRelations(ctx, []Relation{
		{From: "web-frontend", To: "web-backend", RelationType: "calls"},
		{From: "web-backend", To: "database", RelationType: "reads"},
	})
	require.NoError(t, err)

	result, err := repo.SearchNodes(ctx, "web")
	require.NoError(t, err)
	assert.Len(t, result.Entities, 2)
	// only the relation whose BOTH endpoints matched survives
	assert.Equal(t, []Relation{{From: "web-frontend", To: "web-backend", RelationType: "calls"}}, result.Relations)
}

func TestSearchWithRelationships_EntityCap(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	entities := make([]Entity, 0, 10)
	for i := 0; i < 10; i++ {
		entities = append(entities, Entity{Name: fmt.Sprintf("node-%02d", i), EntityType: "node"})
	}
	_, err := repo.CreateEntities(ctx, entities)
	require.NoError(t, err)

	resp, err := repo.SearchWithRelationships(ctx, "node", SearchOptions{MaxEntities: 3, MaxRelationshipsPerEntity: 5})
	require.NoError(t, err)

	assert.Len(t, resp.Entities, 3)
	assert.Equal(t, 10, resp.Metadata.TotalEntitiesFound)
	assert.GreaterOrEqual(t, resp.Metadata.TotalEntitiesFound, len(resp.Entities))
	assert.Equal(t, BackendFile, resp.Metadata.BackendUsed)
}

func TestSearchWithRelationships_RelationshipCap(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	hub := []Entity{{Name: "hub", EntityType: "router"}}
	for i := 0; i < 8; i++ {
		hub = append(hub, Entity{Name: fmt.Sprintf("leaf-%d", i), EntityType: "leaf"})
	}
	_, err := repo.CreateEntities(ctx, hub)
	require.NoError(t, err)

	relations := make([]Relation, 0, 8)
	for i := 0; i < 8; i++ {
		relations = append(relations, Relation{From: "hub", To: fmt.Sprintf("leaf-%d", i), RelationType: "routes"})
	}
	_, err = repo.CreateRelations(ctx, relations)
	require.NoError(t, err)

	resp, err := repo.SearchWithRelationships(ctx, "hub", SearchOptions{MaxEntities: 20, MaxRelationshipsPerEntity: 3})
	require.NoError(t, err)

	assert.Len(t, resp.Relations, 3)
	assert.True(t, resp.Metadata.RelationshipsLimited)

	// raise the cap past the true group size and the flag clears
	resp, err = repo.SearchWithRelationships(ctx, "hub", SearchOptions{MaxEntities: 20, MaxRelationshipsPerEntity: 10})
	require.NoError(t, err)
	assert.Len(t, resp.Relations, 8)
	assert.False(t, resp.Metadata.RelationshipsLimited)
}

func TestSearchWithRelationships_NeighborsOutsideMatchSet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.CreateEntities(ctx, []Entity{
		{Name: "target", EntityType: "t"},
		{Name: "neighbor", EntityType: "other"},
	})
	require.NoError(t, err)
	_, err = repo.CreateRelations(ctx, []Relation{
		{From: "target", To: "neighbor", RelationType: "touches"},
	})
	require.NoError(t, err)

	// bounded search keeps relations with only ONE matched endpoint,
	// unlike simple search
	resp, err := repo.SearchWithRelationships(ctx, "target", SearchOptions{MaxEntities: 20, MaxRelationshipsPerEntity: 5})
	require.NoError(t, err)
	assert.Len(t, resp.Relations, 1)

	simple, err := repo.SearchNodes(ctx, "target")
	require.NoError(t, err)
	assert.Empty(t, simple.Relations)
}

func TestSearchWithRelationships_Defaults(t *testing.T) {
	opts := SearchOptions{}.withDefaults()
	assert.Equal(t, 20, opts.MaxEntities)
	assert.Equal(t, 5, opts.MaxRelationshipsPerEntity)

	def := DefaultSearchOptions()
	assert.True(t, def.FallbackToSimple)
}
