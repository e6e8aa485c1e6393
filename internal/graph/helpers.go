package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ============================================================================
// Neo4j record helpers
// ============================================================================

func getStringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getIntFromRecord(record *neo4j.Record, key string) int {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	if i, ok := val.(int64); ok {
		return int(i)
	}
	if i, ok := val.(int); ok {
		return i
	}
	return 0
}

func getStringSliceFromRecord(record *neo4j.Record, key string) []string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return []string{}
	}
	if slice, ok := val.([]interface{}); ok {
		result := make([]string, 0, len(slice))
		for _, v := range slice {
			if str, ok := v.(string); ok {
				result = append(result, str)
			}
		}
		return result
	}
	return []string{}
}

// collectEntities drains a result whose rows carry name, entityType and
// observations columns.
func collectEntities(ctx context.Context, result neo4j.ResultWithContext) ([]Entity, error) {
	entities := make([]Entity, 0)
	for result.Next(ctx) {
		record := result.Record()
		entities = append(entities, Entity{
			Name:         getStringFromRecord(record, "name"),
			EntityType:   getStringFromRecord(record, "entityType"),
			Observations: getStringSliceFromRecord(record, "observations"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return entities, nil
}

// collectRelations drains a result whose rows carry from, to and
// relationType columns.
func collectRelations(ctx context.Context, result neo4j.ResultWithContext) ([]Relation, error) {
	relations := make([]Relation, 0)
	for result.Next(ctx) {
		record := result.Record()
		relations = append(relations, Relation{
			From:         getStringFromRecord(record, "from"),
			To:           getStringFromRecord(record, "to"),
			RelationType: getStringFromRecord(record, "relationType"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return relations, nil
}
