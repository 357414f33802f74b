package sqlite

// logSchema defines the four insert-only tables of the append log.
// memory_log is keyed by the record id so the idempotent-skip check has an
// index to hit; the event tables are pure append, keyed by rowid.
const logSchema = `
CREATE TABLE IF NOT EXISTS memory_log (
    id         TEXT PRIMARY KEY,
    summary    TEXT NOT NULL,
    created_at TEXT NOT NULL,
    version    INTEGER NOT NULL,
    record     TEXT NOT NULL,
    logged_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS conflict_log (
    seq                INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp          TEXT NOT NULL,
    conflict_type      TEXT NOT NULL,
    new_id             TEXT NOT NULL,
    new_summary        TEXT NOT NULL,
    new_version        INTEGER NOT NULL,
    new_confidence     REAL NOT NULL,
    current_id         TEXT NOT NULL,
    current_summary    TEXT NOT NULL,
    current_version    INTEGER NOT NULL,
    current_confidence REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS query_log (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp  TEXT NOT NULL,
    prompt     TEXT NOT NULL,
    top_k      INTEGER NOT NULL,
    result_ids TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS summary_log (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp  TEXT NOT NULL,
    memory_ids TEXT NOT NULL,
    prompt     TEXT NOT NULL,
    summary    TEXT NOT NULL
);
`

// graphSchema defines the relationship graph: memory nodes, entity nodes,
// typed entity edges, and memory→entity mention links. All writes against
// these tables use upsert/ignore semantics so merges are repeatable.
const graphSchema = `
CREATE TABLE IF NOT EXISTS memory_nodes (
    id         TEXT PRIMARY KEY,
    summary    TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS entity_nodes (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    type       TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS entity_edges (
    source_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    rel_type  TEXT NOT NULL,
    PRIMARY KEY (source_id, target_id, rel_type)
);

CREATE INDEX IF NOT EXISTS idx_entity_edges_source ON entity_edges(source_id);
CREATE INDEX IF NOT EXISTS idx_entity_edges_target ON entity_edges(target_id);

CREATE TABLE IF NOT EXISTS mention_links (
    memory_id TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    PRIMARY KEY (memory_id, entity_id)
);

CREATE INDEX IF NOT EXISTS idx_mention_links_entity ON mention_links(entity_id);
`
