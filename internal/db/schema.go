package db

const schema = `
-- Review projects
CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    description TEXT DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Records imported into a project
CREATE TABLE IF NOT EXISTS records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id TEXT NOT NULL,
    title TEXT NOT NULL,
    abstract TEXT DEFAULT '',
    authors TEXT DEFAULT '',
    FOREIGN KEY (project_id) REFERENCES projects(id)
);

-- Screening labels, one per record
CREATE TABLE IF NOT EXISTS labels (
    project_id TEXT NOT NULL,
    record_id INTEGER NOT NULL,
    label INTEGER NOT NULL,
    is_prior INTEGER NOT NULL DEFAULT 0,
    labeled_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (project_id, record_id),
    FOREIGN KEY (project_id) REFERENCES projects(id),
    FOREIGN KEY (record_id) REFERENCES records(id)
);

CREATE INDEX IF NOT EXISTS idx_records_project ON records(project_id);
CREATE INDEX IF NOT EXISTS idx_labels_prior ON labels(project_id, is_prior);
`
