package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/memloom/memloom/internal/storage"
	"github.com/memloom/memloom/pkg/types"
)

const (
	defaultMaxHops = 3
	hopCeiling     = 5
	defaultLimit   = 50
	limitCeiling   = 100
)

// GraphStore implements storage.GraphStore on SQLite. Memory nodes, entity
// nodes, edges and mention links live in four tables; FindRelated runs a
// bounded BFS over them.
//
// Relationship types are stored as bound parameters, never interpolated into
// SQL, and are additionally checked against the safe identifier charset
// because extraction output is untrusted.
type GraphStore struct {
	db *sql.DB
}

// NewGraphStore opens (or creates) the graph database at dsn.
// Call Initialize before using the store.
func NewGraphStore(dsn string) (*GraphStore, error) {
	db, err := openDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open graph store: %w", err)
	}
	return &GraphStore{db: db}, nil
}

// Initialize creates the graph tables and indexes. Idempotent.
func (g *GraphStore) Initialize(ctx context.Context) error {
	if _, err := g.db.ExecContext(ctx, graphSchema); err != nil {
		return fmt.Errorf("sqlite: failed to create graph schema: %w", err)
	}
	return nil
}

// MergeMemoryNode creates or updates the node for a memory record.
func (g *GraphStore) MergeMemoryNode(ctx context.Context, id, summary string) error {
	if id == "" {
		return fmt.Errorf("sqlite: MergeMemoryNode: %w: empty id", storage.ErrInvalidInput)
	}
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO memory_nodes (id, summary, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			summary = excluded.summary,
			updated_at = excluded.updated_at
	`, id, summary, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite: failed to merge memory node %s: %w", id, err)
	}
	return nil
}

// MergeEntityNode creates or updates an entity node keyed by id.
func (g *GraphStore) MergeEntityNode(ctx context.Context, id, name, entityType string) error {
	if id == "" || name == "" {
		return fmt.Errorf("sqlite: MergeEntityNode: %w: id and name are required", storage.ErrInvalidInput)
	}
	if entityType == "" {
		entityType = types.DefaultEntityType
	}
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO entity_nodes (id, name, type, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			updated_at = excluded.updated_at
	`, id, name, entityType, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite: failed to merge entity node %s: %w", id, err)
	}
	return nil
}

// MergeEntityEdge creates a typed relationship between two existing entity
// nodes. Repeating the same edge is a no-op, and so is an edge whose source
// or target node has not been merged: extraction output routinely references
// entities it never defined, and those edges are silently skipped rather
// than stored dangling.
func (g *GraphStore) MergeEntityEdge(ctx context.Context, sourceID, targetID, relationshipType string) error {
	if sourceID == "" || targetID == "" {
		return fmt.Errorf("sqlite: MergeEntityEdge: %w: source and target are required", storage.ErrInvalidInput)
	}
	if relationshipType == "" {
		relationshipType = types.DefaultRelationshipType
	}
	if !types.IsSafeRelationshipType(relationshipType) {
		return fmt.Errorf("sqlite: MergeEntityEdge: %w: unsafe relationship type %q", storage.ErrInvalidInput, relationshipType)
	}
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO entity_edges (source_id, target_id, rel_type)
		SELECT ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM entity_nodes WHERE id = ?)
		  AND EXISTS (SELECT 1 FROM entity_nodes WHERE id = ?)
		ON CONFLICT(source_id, target_id, rel_type) DO NOTHING
	`, sourceID, targetID, relationshipType, sourceID, targetID)
	if err != nil {
		return fmt.Errorf("sqlite: failed to merge edge %s->%s: %w", sourceID, targetID, err)
	}
	return nil
}

// MergeMentionLink records that memoryID's summary mentions entityID.
func (g *GraphStore) MergeMentionLink(ctx context.Context, memoryID, entityID string) error {
	if memoryID == "" || entityID == "" {
		return fmt.Errorf("sqlite: MergeMentionLink: %w: memory and entity ids are required", storage.ErrInvalidInput)
	}
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO mention_links (memory_id, entity_id)
		VALUES (?, ?)
		ON CONFLICT(memory_id, entity_id) DO NOTHING
	`, memoryID, entityID)
	if err != nil {
		return fmt.Errorf("sqlite: failed to merge mention link %s->%s: %w", memoryID, entityID, err)
	}
	return nil
}

// FindRelated performs a multi-hop BFS from memoryID through mention links
// and entity edges, returning other memories reachable within maxHops.
//
// Algorithm:
//  1. Seed the frontier with entities mentioned by the start memory.
//  2. Per hop: collect memories mentioning frontier entities, then expand
//     the frontier through entity_edges to unvisited neighbour entities.
//  3. Stop at maxHops, the limit, or an empty frontier.
//
// Hops are clamped to 3 when outside [1, 5] and the limit to 50 when outside
// [1, 100].
func (g *GraphStore) FindRelated(ctx context.Context, memoryID string, maxHops, limit int) ([]storage.RelatedMemory, error) {
	if memoryID == "" {
		return nil, fmt.Errorf("sqlite: FindRelated: %w: empty memory id", storage.ErrInvalidInput)
	}
	if maxHops < 1 || maxHops > hopCeiling {
		maxHops = defaultMaxHops
	}
	if limit < 1 || limit > limitCeiling {
		limit = defaultLimit
	}

	frontier, err := g.entityIDsForMemory(ctx, memoryID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: FindRelated: seed entities: %w", err)
	}
	if len(frontier) == 0 {
		return nil, nil
	}

	visitedEntities := make(map[string]bool, len(frontier))
	for _, eid := range frontier {
		visitedEntities[eid] = true
	}
	seenMemories := map[string]bool{memoryID: true}

	var results []storage.RelatedMemory

	for hop := 1; hop <= maxHops && len(frontier) > 0 && len(results) < limit; hop++ {
		// Memories mentioning the current frontier entities are at this hop.
		for _, eid := range frontier {
			related, err := g.memoriesMentioningEntity(ctx, eid)
			if err != nil {
				return nil, fmt.Errorf("sqlite: FindRelated hop %d entity %s: %w", hop, eid, err)
			}
			for _, rm := range related {
				if seenMemories[rm.ID] {
					continue
				}
				seenMemories[rm.ID] = true
				results = append(results, rm)
				if len(results) >= limit {
					return results, nil
				}
			}
		}

		// Expand the frontier through entity edges (both directions).
		next := make([]string, 0)
		for _, eid := range frontier {
			neighbours, err := g.neighbourEntities(ctx, eid)
			if err != nil {
				return nil, fmt.Errorf("sqlite: FindRelated hop %d neighbours of %s: %w", hop, eid, err)
			}
			for _, nid := range neighbours {
				if visitedEntities[nid] {
					continue
				}
				visitedEntities[nid] = true
				next = append(next, nid)
			}
		}
		frontier = next
	}

	return results, nil
}

func (g *GraphStore) entityIDsForMemory(ctx context.Context, memoryID string) ([]string, error) {
	rows, err := g.db.QueryContext(ctx,
		"SELECT entity_id FROM mention_links WHERE memory_id = ?", memoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (g *GraphStore) memoriesMentioningEntity(ctx context.Context, entityID string) ([]storage.RelatedMemory, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT m.id, m.summary
		FROM mention_links ml
		JOIN memory_nodes m ON m.id = ml.memory_id
		WHERE ml.entity_id = ?
	`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.RelatedMemory
	for rows.Next() {
		var rm storage.RelatedMemory
		if err := rows.Scan(&rm.ID, &rm.Summary); err != nil {
			return nil, err
		}
		out = append(out, rm)
	}
	return out, rows.Err()
}

func (g *GraphStore) neighbourEntities(ctx context.Context, entityID string) ([]string, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT target_id FROM entity_edges WHERE source_id = ?
		UNION
		SELECT source_id FROM entity_edges WHERE target_id = ?
	`, entityID, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the underlying database.
func (g *GraphStore) Close() error {
	return g.db.Close()
}

// Compile-time assertion that GraphStore satisfies the storage interface.
var _ storage.GraphStore = (*GraphStore)(nil)
