package registry

const schemaSQL = `
CREATE TABLE IF NOT EXISTS pages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT UNIQUE NOT NULL,
    host TEXT NOT NULL,
    parent_url TEXT,
    depth INTEGER NOT NULL DEFAULT 0,
    lineage TEXT NOT NULL DEFAULT 'GENERAL' CHECK (lineage IN ('FAQ', 'GENERAL')),
    status TEXT NOT NULL DEFAULT 'PENDING' CHECK (status IN (
        'PENDING', 'FETCHING', 'OK', 'BROKEN', 'BLOCKED_ROBOTS',
        'EXCLUDED_POLICY', 'FETCH_ERROR', 'SKIPPED_DEPTH'
    )),

    added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    claimed_by TEXT,
    claimed_at DATETIME,

    http_status INTEGER,
    content_type TEXT,
    content_hash TEXT,
    artifact_raw_path TEXT,
    artifact_md_path TEXT,
    fetched_at DATETIME,

    title TEXT,
    meta_desc TEXT,
    meta_robots TEXT,
    canonical_url TEXT,

    retry_count INTEGER NOT NULL DEFAULT 0,
    last_error_kind TEXT,
    last_error_message TEXT,
    postprocess_error TEXT
);

CREATE INDEX IF NOT EXISTS idx_pages_status ON pages(status);
CREATE INDEX IF NOT EXISTS idx_pages_claim_order ON pages(status, depth, id);
CREATE INDEX IF NOT EXISTS idx_pages_host ON pages(host);
CREATE INDEX IF NOT EXISTS idx_pages_content_hash ON pages(content_hash) WHERE content_hash IS NOT NULL;

CREATE TABLE IF NOT EXISTS link_edges (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    from_url TEXT NOT NULL,
    to_url TEXT NOT NULL,
    anchor_text TEXT,
    is_external BOOLEAN NOT NULL DEFAULT 0,
    discovered_depth INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(from_url, to_url)
);

CREATE INDEX IF NOT EXISTS idx_edges_from ON link_edges(from_url);
CREATE INDEX IF NOT EXISTS idx_edges_to ON link_edges(to_url);

CREATE TABLE IF NOT EXISTS assets (
    url TEXT PRIMARY KEY,
    kind TEXT NOT NULL CHECK (kind IN ('PDF', 'VIDEO', 'AUDIO', 'OTHER', 'EMBED')),
    local_path TEXT NOT NULL,
    content_hash TEXT,
    size_bytes INTEGER,
    owning_page_url TEXT NOT NULL,
    extracted_text_path TEXT
);

CREATE INDEX IF NOT EXISTS idx_assets_owner ON assets(owning_page_url);

CREATE TABLE IF NOT EXISTS faq_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    document_url TEXT NOT NULL,
    question_text TEXT NOT NULL,
    answer_text TEXT NOT NULL,
    answer_mode TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_faq_document ON faq_items(document_url);

CREATE VIRTUAL TABLE IF NOT EXISTS faq_items_fts USING fts5(
    question_text,
    answer_text,
    content='faq_items',
    content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS faq_items_ai AFTER INSERT ON faq_items BEGIN
    INSERT INTO faq_items_fts(rowid, question_text, answer_text)
    VALUES (new.id, new.question_text, new.answer_text);
END;

CREATE TRIGGER IF NOT EXISTS faq_items_ad AFTER DELETE ON faq_items BEGIN
    INSERT INTO faq_items_fts(faq_items_fts, rowid, question_text, answer_text)
    VALUES ('delete', old.id, old.question_text, old.answer_text);
END;

CREATE TRIGGER IF NOT EXISTS faq_items_au AFTER UPDATE ON faq_items BEGIN
    INSERT INTO faq_items_fts(faq_items_fts, rowid, question_text, answer_text)
    VALUES ('delete', old.id, old.question_text, old.answer_text);
    INSERT INTO faq_items_fts(rowid, question_text, answer_text)
    VALUES (new.id, new.question_text, new.answer_text);
END;

CREATE TABLE IF NOT EXISTS external_urls (
    url TEXT PRIMARY KEY,
    referrer TEXT,
    first_seen_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS external_domains (
    domain TEXT PRIMARY KEY,
    first_seen_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    url_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS robots (
    host TEXT PRIMARY KEY,
    state TEXT NOT NULL,
    fetched_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    ttl_seconds INTEGER NOT NULL,
    crawl_delay_ms INTEGER
);

CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY NOT NULL,
    value TEXT NOT NULL
);
`
