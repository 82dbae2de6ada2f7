package database

const SchemaVersion = 1

// Schema contains all table creation SQL
var Schema = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Server settings (key/value, includes plan pricing)
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Artist accounts
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT UNIQUE NOT NULL,
	artist_name TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	role TEXT DEFAULT 'user' CHECK(role IN ('admin', 'user')),
	identity_verified BOOLEAN DEFAULT 0,
	identity_platform TEXT,
	identity_username TEXT,
	identity_data TEXT,
	identity_verified_at DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	last_login_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);

-- Login/activity audit (feeds the engagement metric)
CREATE TABLE IF NOT EXISTS user_activity (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	activity_type TEXT NOT NULL,
	ip_address TEXT,
	user_agent TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_activity_user ON user_activity(user_id, activity_type, created_at);

-- API tokens (usr_ / adm_ prefixes, SHA-256 hashed at rest)
CREATE TABLE IF NOT EXISTS tokens (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	token_hash TEXT NOT NULL,
	token_prefix TEXT NOT NULL,
	expires_at DATETIME,
	last_used_at DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(owner_id, name)
);

CREATE INDEX IF NOT EXISTS idx_tokens_hash ON tokens(token_hash);
CREATE INDEX IF NOT EXISTS idx_tokens_owner ON tokens(owner_id);

-- One authoritative subscription row per user, mutated in place by the
-- billing webhook
CREATE TABLE IF NOT EXISTS subscriptions (
	user_id INTEGER PRIMARY KEY,
	tier TEXT NOT NULL DEFAULT 'trial' CHECK(tier IN ('trial', 'plus', 'pro')),
	status TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'expired', 'cancelled', 'pending_payment', 'payment_failed')),
	stripe_customer_id TEXT,
	stripe_subscription_id TEXT,
	expires_at DATETIME,
	free_release_used BOOLEAN DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_subscriptions_tier ON subscriptions(tier, status);
CREATE INDEX IF NOT EXISTS idx_subscriptions_customer ON subscriptions(stripe_customer_id);

-- AI token usage counters, one row per user per period
-- (period_key is YYYY-MM-DD for trial daily windows, YYYY-MM for plus monthly)
CREATE TABLE IF NOT EXISTS ai_usage (
	user_id INTEGER NOT NULL,
	period_key TEXT NOT NULL,
	tokens_used INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, period_key),
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

-- Releases
CREATE TABLE IF NOT EXISTS releases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	artist_id INTEGER NOT NULL,
	distribution_type TEXT NOT NULL CHECK(distribution_type IN ('Single', 'EP', 'Album')),
	release_title TEXT NOT NULL,
	slug TEXT UNIQUE,
	genre TEXT,
	language TEXT,
	label TEXT,
	c_line TEXT,
	p_line TEXT,
	album_cover_url TEXT,
	selected_stores TEXT,
	track_price REAL,
	release_date DATE,
	status TEXT NOT NULL DEFAULT 'draft' CHECK(status IN ('draft', 'under_review', 'approved', 'rejected', 'sent_to_stores', 'takedown_requested', 'takedown')),
	current_step INTEGER DEFAULT 1,
	terms_agreed BOOLEAN DEFAULT 0,
	fair_use_agreed BOOLEAN DEFAULT 0,
	snapchat_terms_agreed BOOLEAN DEFAULT 0,
	parsed_links TEXT,
	has_parsed_data BOOLEAN DEFAULT 0,
	fan_engagement TEXT,
	rejection_reason TEXT,
	submitted_at DATETIME,
	reviewed_at DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (artist_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_releases_artist ON releases(artist_id);
CREATE INDEX IF NOT EXISTS idx_releases_status ON releases(status);
CREATE INDEX IF NOT EXISTS idx_releases_slug ON releases(slug);

-- Tracks, ordered 1-based within a release
CREATE TABLE IF NOT EXISTS tracks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	release_id INTEGER NOT NULL,
	track_number INTEGER NOT NULL,
	track_title TEXT NOT NULL,
	artist_names TEXT,
	featured_artists TEXT,
	songwriters TEXT,
	producer_credits TEXT,
	performer_credits TEXT,
	genre TEXT,
	audio_file_url TEXT,
	audio_file_name TEXT,
	isrc TEXT,
	lyrics_text TEXT,
	has_lyrics BOOLEAN DEFAULT 0,
	add_featured_to_title BOOLEAN DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(release_id, track_number),
	FOREIGN KEY (release_id) REFERENCES releases(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_tracks_release ON tracks(release_id, track_number);

-- Assistant chat log; notifications are system-authored rows keyed by
-- notification_key so a nudge fires at most once per user
CREATE TABLE IF NOT EXISTS assistant_messages (
	id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL,
	message_text TEXT NOT NULL,
	is_user_message BOOLEAN NOT NULL DEFAULT 0,
	intent TEXT,
	message_kind TEXT NOT NULL DEFAULT 'chat' CHECK(message_kind IN ('chat', 'notification')),
	notification_key TEXT,
	is_unread BOOLEAN DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_notification_key ON assistant_messages(user_id, notification_key)
	WHERE notification_key IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_messages_user ON assistant_messages(user_id, created_at);

-- Daily aggregated topic analysis, recomputed idempotently per key
CREATE TABLE IF NOT EXISTS topic_analyses (
	analysis_date DATE NOT NULL,
	user_tier TEXT NOT NULL,
	time_range_days INTEGER NOT NULL,
	topics_json TEXT,
	wordcloud_json TEXT,
	status TEXT NOT NULL DEFAULT 'processing' CHECK(status IN ('processing', 'completed', 'failed')),
	error_message TEXT,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (analysis_date, user_tier, time_range_days)
);

-- Earnings rows imported from store reports
CREATE TABLE IF NOT EXISTS earnings_reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	upload_id TEXT NOT NULL,
	sale_month TEXT NOT NULL,
	store TEXT NOT NULL,
	artist_name TEXT,
	release_title TEXT,
	track_title TEXT,
	isrc TEXT,
	quantity INTEGER DEFAULT 0,
	earnings_usd REAL NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_earnings_upload ON earnings_reports(upload_id);
CREATE INDEX IF NOT EXISTS idx_earnings_month ON earnings_reports(sale_month, store);

-- One row per report file upload
CREATE TABLE IF NOT EXISTS upload_history (
	id TEXT PRIMARY KEY,
	admin_id INTEGER NOT NULL,
	filename TEXT NOT NULL,
	rows_total INTEGER DEFAULT 0,
	rows_processed INTEGER DEFAULT 0,
	rows_failed INTEGER DEFAULT 0,
	upload_status TEXT NOT NULL CHECK(upload_status IN ('success', 'partial_success', 'failed')),
	error_detail TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Scheduler task locks (one node runs a global task at a time)
CREATE TABLE IF NOT EXISTS scheduler_state (
	task_name TEXT PRIMARY KEY,
	locked_by TEXT,
	locked_at DATETIME,
	last_run_at DATETIME,
	last_status TEXT,
	enabled BOOLEAN DEFAULT 1
);
`

// DefaultSettings are inserted on first run
var DefaultSettings = map[string]string{
	"plans.plus.monthly_cents": "499",
	"plans.pro.monthly_cents":  "999",
	"trial.duration_days":      "14",
	"branding.title":           "Tunecast",
}
