package graph

import "strings"

// Result-shaping helpers shared by both backends so bounded search behaves
// identically regardless of which storage engine produced the candidates.

// entityMatches reports whether the query is a case-insensitive substring of
// the entity name, its type, or any observation.
func entityMatches(e Entity, query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(e.Name), q) {
		return true
	}
	if strings.Contains(strings.ToLower(e.EntityType), q) {
		return true
	}
	for _, obs := range e.Observations {
		if strings.Contains(strings.ToLower(obs), q) {
			return true
		}
	}
	return false
}

// entityNameSet builds a membership set from a slice of entities.
func entityNameSet(entities []Entity) map[string]bool {
	set := make(map[string]bool, len(entities))
	for _, e := range entities {
		set[e.Name] = true
	}
	return set
}

// induceRelations returns the relations whose endpoints are both inside the
// given name set, preserving input order.
func induceRelations(names map[string]bool, relations []Relation) []Relation {
	induced := make([]Relation, 0)
	for _, r := range relations {
		if names[r.From] && names[r.To] {
			induced = append(induced, r)
		}
	}
	return induced
}

// dedupeStrings removes duplicate strings preserving first-seen order.
func dedupeStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// dedupeRelations removes duplicate (from, relationType, to) triples
// preserving first-seen order.
func dedupeRelations(relations []Relation) []Relation {
	seen := make(map[Relation]bool, len(relations))
	out := make([]Relation, 0, len(relations))
	for _, r := range relations {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

// primaryEndpoint picks the grouping key for a candidate relation during
// bounded search: the endpoint that belongs to the matched set. When both
// endpoints are matched the lexicographically smaller name wins, so the
// grouping is deterministic across backends.
func primaryEndpoint(r Relation, matched map[string]bool) string {
	fromMatched := matched[r.From]
	toMatched := matched[r.To]
	switch {
	case fromMatched && toMatched:
		if r.From <= r.To {
			return r.From
		}
		return r.To
	case fromMatched:
		return r.From
	case toMatched:
		return r.To
	default:
		return r.From
	}
}

// boundRelationGroups de-duplicates candidate relations, groups them by
// primary entity, and truncates each group to maxPerEntity. The returned
// flag is true iff at least one group's true size exceeded the cap.
func boundRelationGroups(matched map[string]bool, candidates []Relation, maxPerEntity int) ([]Relation, bool) {
	deduped := dedupeRelations(candidates)
	counts := make(map[string]int)
	kept := make([]Relation, 0, len(deduped))
	limited := false
	for _, r := range deduped {
		key := primaryEndpoint(r, matched)
		if counts[key] >= maxPerEntity {
			limited = true
			continue
		}
		counts[key]++
		kept = append(kept, r)
	}
	return kept, limited
}

// simpleToBounded reshapes an unbounded SearchNodes result into the bounded
// search envelope, used when the bounded algorithm downgrades.
func simpleToBounded(g *KnowledgeGraph, backend string) *SearchResponse {
	return &SearchResponse{
		Entities:  g.Entities,
		Relations: g.Relations,
		Metadata: SearchMetadata{
			TotalEntitiesFound:   len(g.Entities),
			RelationshipsLimited: false,
			BackendUsed:          backend,
		},
	}
}
