package graph

import "context"

// Backend identifiers reported through operation metadata and status.
const (
	BackendNeo4j = "neo4j"
	BackendFile  = "file"
)

// Entity represents a node in the knowledge graph. Name is the global key.
type Entity struct {
	Name         string   `json:"name"`
	EntityType   string   `json:"entityType"`
	Observations []string `json:"observations"`
}

// Relation represents a directed edge between entities. Its identity is the
// (from, relationType, to) triple.
type Relation struct {
	From         string `json:"from"`
	To           string `json:"to"`
	RelationType string `json:"relationType"`
}

// KnowledgeGraph is the transient aggregate returned by read operations.
type KnowledgeGraph struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
}

// ObservationAddition names an entity and the observation strings to append.
type ObservationAddition struct {
	EntityName string   `json:"entityName"`
	Contents   []string `json:"contents"`
}

// ObservationResult reports, per entity, exactly the strings newly added.
type ObservationResult struct {
	EntityName        string   `json:"entityName"`
	AddedObservations []string `json:"addedObservations"`
}

// ObservationDeletion names an entity and the observation strings to remove.
type ObservationDeletion struct {
	EntityName   string   `json:"entityName"`
	Observations []string `json:"observations"`
}

// ReadOptions controls paging for ReadGraph. A Limit <= 0 reads the full
// graph; otherwise entities [Offset, Offset+Limit) are returned in a stable
// backend order together with the relations induced by that page.
type ReadOptions struct {
	Limit  int `json:"limit" form:"limit"`
	Offset int `json:"offset" form:"offset"`
}

// SearchOptions bounds SearchWithRelationships.
type SearchOptions struct {
	MaxEntities               int  `json:"maxEntities"`
	MaxRelationshipsPerEntity int  `json:"maxRelationshipsPerEntity"`
	FallbackToSimple          bool `json:"fallbackToSimple"`
}

// DefaultSearchOptions returns the documented defaults for bounded search.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		MaxEntities:               20,
		MaxRelationshipsPerEntity: 5,
		FallbackToSimple:          true,
	}
}

func (o SearchOptions) withDefaults() SearchOptions {
	def := DefaultSearchOptions()
	if o.MaxEntities <= 0 {
		o.MaxEntities = def.MaxEntities
	}
	if o.MaxRelationshipsPerEntity <= 0 {
		o.MaxRelationshipsPerEntity = def.MaxRelationshipsPerEntity
	}
	return o
}

// SearchMetadata describes how a bounded search result was produced.
// TotalEntitiesFound is the match count before MaxEntities was applied.
type SearchMetadata struct {
	TotalEntitiesFound   int    `json:"totalEntitiesFound"`
	RelationshipsLimited bool   `json:"relationshipsLimited"`
	BackendUsed          string `json:"backendUsed"`
}

// SearchResponse is the envelope returned by SearchWithRelationships.
type SearchResponse struct {
	Entities  []Entity       `json:"entities"`
	Relations []Relation     `json:"relations"`
	Metadata  SearchMetadata `json:"metadata"`
}

// EntitySummary is a lightweight entity representation for summary results.
type EntitySummary struct {
	Name       string `json:"name"`
	EntityType string `json:"entityType"`
}

// GraphSummary holds a lightweight overview of the entire graph.
type GraphSummary struct {
	TotalEntities  int             `json:"totalEntities"`
	TotalRelations int             `json:"totalRelations"`
	EntityTypes    map[string]int  `json:"entityTypes"`
	RelationTypes  map[string]int  `json:"relationTypes"`
	Entities       []EntitySummary `json:"entities"`
	Limit          int             `json:"limit"`
	HasMore        bool            `json:"hasMore"`
}

// StorageStatus reports backend health and routing facts.
type StorageStatus struct {
	CurrentBackend       string `json:"currentBackend"`
	LastOperationBackend string `json:"lastOperationBackend"`
	NeoConfigured        bool   `json:"neoConfigured"`
	NeoAvailable         bool   `json:"neoAvailable"`
	BackendConsistent    bool   `json:"backendConsistent"`
	ConnectionHealth     string `json:"connectionHealth"`
	Connection           string `json:"connection"`
}

// Connection health values derived from configuration and the live flag.
const (
	HealthHealthy     = "healthy"
	HealthDegraded    = "degraded"
	HealthUnavailable = "unavailable"
)

// Store is the operation surface implemented equivalently by both backends.
// The Manager routes every call to one concrete variant and owns the
// failure-to-fallback transition; implementations never switch backends
// themselves.
type Store interface {
	CreateEntities(ctx context.Context, entities []Entity) ([]Entity, error)
	CreateRelations(ctx context.Context, relations []Relation) ([]Relation, error)
	AddObservations(ctx context.Context, additions []ObservationAddition) ([]ObservationResult, error)
	DeleteEntities(ctx context.Context, names []string) error
	DeleteObservations(ctx context.Context, deletions []ObservationDeletion) error
	DeleteRelations(ctx context.Context, relations []Relation) error
	ReadGraph(ctx context.Context, opts ReadOptions) (*KnowledgeGraph, error)
	SearchNodes(ctx context.Context, query string) (*KnowledgeGraph, error)
	SearchWithRelationships(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error)
	OpenNodes(ctx context.Context, names []string) (*KnowledgeGraph, error)
	GraphSummary(ctx context.Context, limit int) (*GraphSummary, error)
}
