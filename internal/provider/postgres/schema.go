// Package postgres implements a durable Postgres profile store.
package postgres

const schemaDDL = `
CREATE TABLE IF NOT EXISTS profiles (
    id          TEXT PRIMARY KEY,
    parent_id   TEXT,
    name        TEXT NOT NULL,
    version     INTEGER NOT NULL DEFAULT 0,
    body        JSONB NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_profiles_parent ON profiles (parent_id);
`
