package sqlite

// schema is applied once, at database creation, before any numbered
// migration runs. Later structural changes belong in migrations.go,
// not here, mirroring the teacher's split between a baseline schema.go
// and an append-only migrations list.
const schema = `
CREATE TABLE IF NOT EXISTS projects (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    slug            TEXT NOT NULL UNIQUE,
    name            TEXT NOT NULL,
    repository_url  TEXT NOT NULL DEFAULT '',
    default_branch  TEXT NOT NULL DEFAULT 'main',
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS file_types (
    tag      TEXT PRIMARY KEY,
    category TEXT NOT NULL
);

-- Content-addressable blob store. Global, never project-scoped: two
-- projects with byte-identical files share one row.
CREATE TABLE IF NOT EXISTS content_blobs (
    hash_sha256     TEXT PRIMARY KEY,
    kind            TEXT NOT NULL CHECK(kind IN ('text', 'binary')),
    text            TEXT NOT NULL DEFAULT '',
    encoding        TEXT NOT NULL DEFAULT '',
    content_type    TEXT NOT NULL DEFAULT '',
    bytes           BLOB,
    line_count      INTEGER NOT NULL DEFAULT 0,
    size            INTEGER NOT NULL DEFAULT 0,
    reference_count INTEGER NOT NULL DEFAULT 0,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- relative_path is unique per project, never globally (invariant I8).
CREATE TABLE IF NOT EXISTS project_files (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id      INTEGER NOT NULL REFERENCES projects(id),
    relative_path   TEXT NOT NULL,
    name            TEXT NOT NULL,
    type_tag        TEXT NOT NULL DEFAULT '',
    line_count      INTEGER NOT NULL DEFAULT 0,
    status          TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'deleted')),
    current_hash    TEXT NOT NULL DEFAULT '',
    current_version INTEGER NOT NULL DEFAULT 0,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(project_id, relative_path)
);

CREATE INDEX IF NOT EXISTS idx_project_files_project ON project_files(project_id, status);

-- One row per version in a file's content chain; exactly one row per
-- file_id has is_current = 1 (enforced in application code, not SQL,
-- since SQLite partial-unique-on-expression across updates is fragile
-- under concurrent writers — see internal/storage/sqlite/registry.go).
CREATE TABLE IF NOT EXISTS file_contents (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    file_id      INTEGER NOT NULL REFERENCES project_files(id),
    version      INTEGER NOT NULL,
    content_hash TEXT NOT NULL REFERENCES content_blobs(hash_sha256),
    size         INTEGER NOT NULL DEFAULT 0,
    line_count   INTEGER NOT NULL DEFAULT 0,
    is_current   INTEGER NOT NULL DEFAULT 0,
    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(file_id, version)
);

CREATE INDEX IF NOT EXISTS idx_file_contents_current ON file_contents(file_id, is_current);

CREATE TABLE IF NOT EXISTS branches (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id       INTEGER NOT NULL REFERENCES projects(id),
    name             TEXT NOT NULL,
    is_default       INTEGER NOT NULL DEFAULT 0,
    parent_branch_id INTEGER REFERENCES branches(id),
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(project_id, name)
);

CREATE TABLE IF NOT EXISTS commits (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id       INTEGER NOT NULL REFERENCES projects(id),
    branch_id        INTEGER NOT NULL REFERENCES branches(id),
    parent_commit_id INTEGER REFERENCES commits(id),
    hash             TEXT NOT NULL,
    author           TEXT NOT NULL DEFAULT '',
    message          TEXT NOT NULL DEFAULT '',
    files_changed    INTEGER NOT NULL DEFAULT 0,
    insertions       INTEGER NOT NULL DEFAULT 0,
    deletions        INTEGER NOT NULL DEFAULT 0,
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(project_id, hash)
);

CREATE INDEX IF NOT EXISTS idx_commits_branch ON commits(branch_id, created_at);

CREATE TABLE IF NOT EXISTS commit_files (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    commit_id        INTEGER NOT NULL REFERENCES commits(id),
    file_id          INTEGER NOT NULL REFERENCES project_files(id),
    change_type      TEXT NOT NULL CHECK(change_type IN ('added', 'modified', 'deleted', 'renamed')),
    old_content_hash TEXT NOT NULL DEFAULT '',
    new_content_hash TEXT NOT NULL DEFAULT '',
    old_path         TEXT NOT NULL DEFAULT '',
    new_path         TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_commit_files_commit ON commit_files(commit_id);

-- Staging index. Rows with staged = 0 are working-state observations
-- that have not been added; the detector (C4) rewrites the full set on
-- every scan, so this table is never grown unboundedly.
CREATE TABLE IF NOT EXISTS working_state (
    project_id    INTEGER NOT NULL REFERENCES projects(id),
    branch_id     INTEGER NOT NULL REFERENCES branches(id),
    file_id       INTEGER NOT NULL DEFAULT 0,
    path          TEXT NOT NULL,
    state         TEXT NOT NULL CHECK(state IN ('unmodified', 'added', 'modified', 'deleted')),
    staged        INTEGER NOT NULL DEFAULT 0,
    detected_hash TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (project_id, branch_id, path)
);

CREATE TABLE IF NOT EXISTS checkouts (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id    INTEGER NOT NULL REFERENCES projects(id),
    checkout_path TEXT NOT NULL UNIQUE,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_sync_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- The third point of three-way conflict detection: what version each
-- file was at when this checkout last synced.
CREATE TABLE IF NOT EXISTS checkout_snapshots (
    checkout_id  INTEGER NOT NULL REFERENCES checkouts(id),
    file_id      INTEGER NOT NULL REFERENCES project_files(id),
    content_hash TEXT NOT NULL DEFAULT '',
    version      INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (checkout_id, file_id)
);

CREATE TABLE IF NOT EXISTS work_items (
    id                   TEXT PRIMARY KEY,
    project_id           INTEGER NOT NULL REFERENCES projects(id),
    title                TEXT NOT NULL CHECK(length(title) <= 500),
    description          TEXT NOT NULL DEFAULT '',
    item_type            TEXT NOT NULL DEFAULT 'task',
    priority             TEXT NOT NULL DEFAULT 'medium' CHECK(priority IN ('critical', 'high', 'medium', 'low')),
    status               TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'assigned', 'in_progress', 'blocked', 'completed', 'cancelled')),
    parent_id            TEXT REFERENCES work_items(id),
    assigned_session_id  TEXT NOT NULL DEFAULT '',
    creating_session_id  TEXT NOT NULL DEFAULT '',
    labels               TEXT NOT NULL DEFAULT '',
    estimated_minutes    INTEGER,
    created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    started_at           DATETIME,
    completed_at         DATETIME,
    assigned_at          DATETIME
);

CREATE INDEX IF NOT EXISTS idx_work_items_project_status ON work_items(project_id, status);
CREATE INDEX IF NOT EXISTS idx_work_items_parent ON work_items(parent_id);
CREATE INDEX IF NOT EXISTS idx_work_items_assignee ON work_items(assigned_session_id);

CREATE TABLE IF NOT EXISTS work_item_transitions (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    work_item_id TEXT NOT NULL REFERENCES work_items(id),
    from_status  TEXT NOT NULL DEFAULT '',
    to_status    TEXT NOT NULL,
    session_id   TEXT NOT NULL DEFAULT '',
    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_work_item_transitions_item ON work_item_transitions(work_item_id, created_at);

-- Agent sessions are created and owned by the caller (spec §4.10); the
-- core only tracks status and a cached active-work-item count.
CREATE TABLE IF NOT EXISTS agent_sessions (
    id                 TEXT PRIMARY KEY,
    project_id         INTEGER NOT NULL REFERENCES projects(id),
    status             TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'inactive')),
    active_work_count  INTEGER NOT NULL DEFAULT 0,
    started_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS agent_interactions (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id   TEXT NOT NULL REFERENCES agent_sessions(id),
    message_type TEXT NOT NULL CHECK(message_type IN ('work_assignment', 'notification')),
    priority     TEXT NOT NULL DEFAULT 'medium',
    body         TEXT NOT NULL DEFAULT '',
    work_item_id TEXT NOT NULL DEFAULT '',
    delivered_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    read_at      DATETIME
);

CREATE INDEX IF NOT EXISTS idx_agent_interactions_session ON agent_interactions(session_id, read_at);

CREATE TABLE IF NOT EXISTS convoys (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id  INTEGER NOT NULL REFERENCES projects(id),
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT 'draft' CHECK(status IN ('draft', 'active', 'done')),
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS convoy_items (
    convoy_id    INTEGER NOT NULL REFERENCES convoys(id),
    work_item_id TEXT NOT NULL REFERENCES work_items(id),
    position     INTEGER NOT NULL,
    PRIMARY KEY (convoy_id, work_item_id)
);

-- Cathedral export/import policy, scoped per project (spec §6).
CREATE TABLE IF NOT EXISTS export_config (
    project_id INTEGER NOT NULL REFERENCES projects(id),
    key        TEXT NOT NULL,
    value      TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (project_id, key)
);

CREATE TABLE IF NOT EXISTS metadata (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL DEFAULT ''
);
`
