package graph

import "strings"

// GetStorageStatus derives health and consistency facts from manager
// state. It is a pure read; calling it does not count as an operation and
// never changes routing.
func (m *Manager) GetStorageStatus() StorageStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	current := BackendFile
	if m.neoAvailable && m.neo != nil {
		current = BackendNeo4j
	}

	health := HealthUnavailable
	if m.neoConfigured {
		if m.neoAvailable {
			health = HealthHealthy
		} else {
			health = HealthDegraded
		}
	}

	return StorageStatus{
		CurrentBackend:       current,
		LastOperationBackend: m.lastBackend,
		NeoConfigured:        m.neoConfigured,
		NeoAvailable:         m.neoAvailable,
		BackendConsistent:    current == m.lastBackend,
		ConnectionHealth:     health,
		Connection:           maskConnectionURI(m.uri),
	}
}

// maskConnectionURI redacts credentials embedded in a connection string,
// keeping the scheme and host visible.
func maskConnectionURI(uri string) string {
	if uri == "" {
		return ""
	}
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return "***"
	}
	if _, host, ok := strings.Cut(rest, "@"); ok {
		return scheme + "://***@" + host
	}
	return scheme + "://" + rest
}
