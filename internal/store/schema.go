package store

// schema is executed statement by statement so the same DDL runs on sqlite and Postgres.
// Times are unix milliseconds; prices are decimal strings.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS items_state (
    item_id TEXT PRIMARY KEY,
    best_discount_percent INTEGER NOT NULL,
    last_seen_at BIGINT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    link TEXT NOT NULL DEFAULT '',
    image_url TEXT NOT NULL DEFAULT ''
)`,
	`CREATE TABLE IF NOT EXISTS price_points (
    item_id TEXT NOT NULL,
    observed_at BIGINT NOT NULL,
    price TEXT NOT NULL,
    PRIMARY KEY (item_id, observed_at)
)`,
	`CREATE INDEX IF NOT EXISTS idx_price_points_item_time ON price_points(item_id, observed_at DESC)`,
	`CREATE TABLE IF NOT EXISTS tracking (
    user_id BIGINT NOT NULL,
    item_id TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    PRIMARY KEY (user_id, item_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_tracking_item ON tracking(item_id)`,
	`CREATE TABLE IF NOT EXISTS preferences (
    user_id BIGINT PRIMARY KEY,
    min_discount_percent INTEGER NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS notified (
    user_id BIGINT NOT NULL,
    item_id TEXT NOT NULL,
    notified_at BIGINT NOT NULL,
    PRIMARY KEY (user_id, item_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_notified_item ON notified(item_id)`,
	`CREATE TABLE IF NOT EXISTS keyword_subs (
    user_id BIGINT NOT NULL,
    keyword TEXT NOT NULL,
    PRIMARY KEY (user_id, keyword)
)`,
}
