package store

const schema = `
CREATE TABLE IF NOT EXISTS check_state (
    package_id TEXT PRIMARY KEY,
    last_checked_at TIMESTAMP NOT NULL,
    remote_version TEXT,
    state TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_check_state_checked ON check_state(last_checked_at);
`
