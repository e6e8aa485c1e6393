package graph

import (
	"context"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/triepod-ai/memory-graph/pkg/config"
	"github.com/triepod-ai/memory-graph/pkg/errors"
	"github.com/triepod-ai/memory-graph/pkg/logger"
	"go.uber.org/zap"
)

// summaryEntityLimit bounds the entity list embedded in graph summaries.
const summaryEntityLimit = 50

// Manager is the single entry point for every graph operation. It routes
// each call to the Neo4j store while the primary backend is healthy and to
// the file repository otherwise. The first failure of a primary operation
// demotes the manager for the remainder of the process; there is no retry
// or re-promotion.
type Manager struct {
	logger *zap.Logger
	file   *FileRepository
	neo    *Neo4jStore
	driver neo4j.DriverWithContext
	uri    string

	mu            sync.RWMutex
	neoConfigured bool
	neoAvailable  bool
	lastBackend   string
}

// NewManager builds a manager from configuration. When all Neo4j
// credentials are present a driver is created and a connectivity probe runs
// asynchronously; a failed probe releases the driver and leaves the manager
// file-only.
func NewManager(cfg *config.Config) *Manager {
	m := &Manager{
		logger:        logger.Get(),
		file:          NewFileRepository(cfg.MemoryFilePath),
		uri:           cfg.Neo4jURI,
		neoConfigured: cfg.Neo4jConfigured(),
		lastBackend:   BackendFile,
	}

	if !m.neoConfigured {
		m.logger.Info("neo4j credentials not configured, using file backend",
			zap.String("file", cfg.MemoryFilePath),
		)
		return m
	}

	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""))
	if err != nil {
		m.logger.Warn("failed to create neo4j driver, using file backend",
			zap.String("uri", maskConnectionURI(cfg.Neo4jURI)),
			zap.Error(err),
		)
		return m
	}

	m.driver = driver
	m.neo = NewNeo4jStore(driver)
	m.neoAvailable = true
	m.lastBackend = BackendNeo4j

	go m.probeConnectivity()

	return m
}

// probeConnectivity verifies the Neo4j connection once at startup. Failure
// demotes the manager and releases the driver.
func (m *Manager) probeConnectivity() {
	ctx := context.Background()
	if err := m.driver.VerifyConnectivity(ctx); err != nil {
		m.logger.Warn("neo4j connectivity probe failed, using file backend",
			zap.String("uri", maskConnectionURI(m.uri)),
			zap.Error(err),
		)
		m.demote()
		if closeErr := m.driver.Close(ctx); closeErr != nil {
			m.logger.Warn("failed to close neo4j driver after probe failure", zap.Error(closeErr))
		}
		return
	}
	m.logger.Info("neo4j connectivity verified", zap.String("uri", maskConnectionURI(m.uri)))
}

// operation pairs at most one primary callback (read or write, never both)
// with exactly one fallback callback. Exactly one mode executes per call.
type operation[T any] struct {
	primaryRead  func(ctx context.Context) (T, error)
	primaryWrite func(ctx context.Context) (T, error)
	fallback     func(ctx context.Context) (T, error)
}

// run executes an operation against the primary backend when it is
// available, demoting to the file backend on any non-domain failure. Domain
// errors surface unchanged; they signal caller misuse, not backend trouble.
func run[T any](ctx context.Context, m *Manager, op operation[T]) (T, error) {
	primary := op.primaryRead
	mode := "read"
	if op.primaryWrite != nil {
		primary = op.primaryWrite
		mode = "write"
	}

	if primary != nil && m.primaryAvailable() {
		res, err := primary(ctx)
		if err == nil {
			m.recordBackend(BackendNeo4j)
			return res, nil
		}
		if errors.IsEntityNotFound(err) {
			m.recordBackend(BackendNeo4j)
			return res, err
		}
		m.logger.Error("primary backend operation failed, falling back to file backend",
			zap.String("mode", mode),
			zap.Error(err),
		)
		m.demote()
	}

	m.recordBackend(BackendFile)
	return op.fallback(ctx)
}

func (m *Manager) primaryAvailable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.neoAvailable && m.neo != nil
}

// demote permanently marks the primary backend unavailable for the rest of
// the process.
func (m *Manager) demote() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.neoAvailable = false
}

func (m *Manager) recordBackend(backend string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastBackend = backend
}

// LastOperationBackend reports which backend served the most recent
// operation. Observability only; routing never consults it.
func (m *Manager) LastOperationBackend() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastBackend
}

// CreateEntities upserts entities by name on the active backend.
func (m *Manager) CreateEntities(ctx context.Context, entities []Entity) ([]Entity, error) {
	return run(ctx, m, operation[[]Entity]{
		primaryWrite: func(ctx context.Context) ([]Entity, error) {
			return m.neo.CreateEntities(ctx, entities)
		},
		fallback: func(ctx context.Context) ([]Entity, error) {
			return m.file.CreateEntities(ctx, entities)
		},
	})
}

// CreateRelations creates new relations whose endpoints exist.
func (m *Manager) CreateRelations(ctx context.Context, relations []Relation) ([]Relation, error) {
	return run(ctx, m, operation[[]Relation]{
		primaryWrite: func(ctx context.Context) ([]Relation, error) {
			return m.neo.CreateRelations(ctx, relations)
		},
		fallback: func(ctx context.Context) ([]Relation, error) {
			return m.file.CreateRelations(ctx, relations)
		},
	})
}

// AddObservations appends new observation strings to existing entities.
func (m *Manager) AddObservations(ctx context.Context, additions []ObservationAddition) ([]ObservationResult, error) {
	return run(ctx, m, operation[[]ObservationResult]{
		primaryWrite: func(ctx context.Context) ([]ObservationResult, error) {
			return m.neo.AddObservations(ctx, additions)
		},
		fallback: func(ctx context.Context) ([]ObservationResult, error) {
			return m.file.AddObservations(ctx, additions)
		},
	})
}

// DeleteEntities removes entities and cascades to their relations.
func (m *Manager) DeleteEntities(ctx context.Context, names []string) error {
	_, err := run(ctx, m, operation[struct{}]{
		primaryWrite: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, m.neo.DeleteEntities(ctx, names)
		},
		fallback: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, m.file.DeleteEntities(ctx, names)
		},
	})
	return err
}

// DeleteObservations removes observation strings from entities.
func (m *Manager) DeleteObservations(ctx context.Context, deletions []ObservationDeletion) error {
	_, err := run(ctx, m, operation[struct{}]{
		primaryWrite: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, m.neo.DeleteObservations(ctx, deletions)
		},
		fallback: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, m.file.DeleteObservations(ctx, deletions)
		},
	})
	return err
}

// DeleteRelations removes relations matching the exact triple.
func (m *Manager) DeleteRelations(ctx context.Context, relations []Relation) error {
	_, err := run(ctx, m, operation[struct{}]{
		primaryWrite: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, m.neo.DeleteRelations(ctx, relations)
		},
		fallback: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, m.file.DeleteRelations(ctx, relations)
		},
	})
	return err
}

// ReadGraph returns the full graph or a stable entity page with its
// induced relations.
func (m *Manager) ReadGraph(ctx context.Context, opts ReadOptions) (*KnowledgeGraph, error) {
	return run(ctx, m, operation[*KnowledgeGraph]{
		primaryRead: func(ctx context.Context) (*KnowledgeGraph, error) {
			return m.neo.ReadGraph(ctx, opts)
		},
		fallback: func(ctx context.Context) (*KnowledgeGraph, error) {
			return m.file.ReadGraph(ctx, opts)
		},
	})
}

// SearchNodes performs the unbounded substring search.
func (m *Manager) SearchNodes(ctx context.Context, query string) (*KnowledgeGraph, error) {
	return run(ctx, m, operation[*KnowledgeGraph]{
		primaryRead: func(ctx context.Context) (*KnowledgeGraph, error) {
			return m.neo.SearchNodes(ctx, query)
		},
		fallback: func(ctx context.Context) (*KnowledgeGraph, error) {
			return m.file.SearchNodes(ctx, query)
		},
	})
}

// SearchWithRelationships performs the bounded relationship-aware search.
// A failure of the bounded algorithm on the primary backend is handled
// locally: with FallbackToSimple the engine downgrades to SearchNodes and
// reshapes the result, otherwise the error propagates to the caller.
func (m *Manager) SearchWithRelationships(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error) {
	opts = opts.withDefaults()

	if m.primaryAvailable() {
		resp, err := m.neo.SearchWithRelationships(ctx, query, opts)
		if err == nil {
			m.recordBackend(BackendNeo4j)
			return resp, nil
		}
		if !opts.FallbackToSimple {
			return nil, err
		}
		m.logger.Warn("bounded search failed on primary backend, downgrading to simple search",
			zap.Error(err),
		)
		simple, err := m.SearchNodes(ctx, query)
		if err != nil {
			return nil, err
		}
		return simpleToBounded(simple, m.LastOperationBackend()), nil
	}

	m.recordBackend(BackendFile)
	return m.file.SearchWithRelationships(ctx, query, opts)
}

// OpenNodes returns the named entities plus their induced relations.
func (m *Manager) OpenNodes(ctx context.Context, names []string) (*KnowledgeGraph, error) {
	return run(ctx, m, operation[*KnowledgeGraph]{
		primaryRead: func(ctx context.Context) (*KnowledgeGraph, error) {
			return m.neo.OpenNodes(ctx, names)
		},
		fallback: func(ctx context.Context) (*KnowledgeGraph, error) {
			return m.file.OpenNodes(ctx, names)
		},
	})
}

// GetGraphSummary returns totals, type histograms, and a bounded entity
// list.
func (m *Manager) GetGraphSummary(ctx context.Context) (*GraphSummary, error) {
	return run(ctx, m, operation[*GraphSummary]{
		primaryRead: func(ctx context.Context) (*GraphSummary, error) {
			return m.neo.GraphSummary(ctx, summaryEntityLimit)
		},
		fallback: func(ctx context.Context) (*GraphSummary, error) {
			return m.file.GraphSummary(ctx, summaryEntityLimit)
		},
	})
}

// Close releases the Neo4j driver if one is held.
func (m *Manager) Close(ctx context.Context) error {
	if m.driver == nil {
		return nil
	}
	return m.driver.Close(ctx)
}
