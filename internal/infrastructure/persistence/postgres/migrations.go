package postgres

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_students",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_rating_ledger",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_achievements",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
		{
			Version: 4,
			Name:    "create_security_and_activity",
			UpSQL:   migration004Up,
			DownSQL: migration004Down,
		},
		{
			Version: 5,
			Name:    "rating_history_commit_order",
			UpSQL:   migration005Up,
			DownSQL: migration005Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS students (
    id UUID PRIMARY KEY,
    ticket VARCHAR(50) NOT NULL UNIQUE,
    full_name VARCHAR(200) NOT NULL,
    group_name VARCHAR(50) NOT NULL DEFAULT '',
    rating INTEGER NOT NULL DEFAULT 1000,
    stat_int INTEGER NOT NULL DEFAULT 0,
    stat_sta INTEGER NOT NULL DEFAULT 0,
    stat_soc INTEGER NOT NULL DEFAULT 0,
    risk_score INTEGER NOT NULL DEFAULT 0,
    debts_count INTEGER NOT NULL DEFAULT 0,
    status VARCHAR(20) NOT NULL DEFAULT 'STUDYING',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_status CHECK (status IN ('STUDYING', 'ACADEMIC_LEAVE', 'EXPELLED', 'GRADUATED')),
    CONSTRAINT valid_stat_int CHECK (stat_int BETWEEN 0 AND 100),
    CONSTRAINT valid_stat_sta CHECK (stat_sta BETWEEN 0 AND 100),
    CONSTRAINT valid_stat_soc CHECK (stat_soc BETWEEN 0 AND 100),
    CONSTRAINT valid_risk_score CHECK (risk_score BETWEEN 0 AND 100),
    CONSTRAINT valid_debts CHECK (debts_count >= 0)
);

CREATE INDEX IF NOT EXISTS idx_students_rating ON students(rating DESC);
CREATE INDEX IF NOT EXISTS idx_students_risk_score ON students(risk_score DESC);
CREATE INDEX IF NOT EXISTS idx_students_created_at ON students(created_at, id);
CREATE INDEX IF NOT EXISTS idx_students_full_name_lower ON students(lower(full_name));
`

const migration001Down = `
DROP TABLE IF EXISTS students;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: RATING LEDGER
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS rating_history (
    id UUID PRIMARY KEY,
    seq BIGSERIAL NOT NULL,
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    prev_rating INTEGER NOT NULL,
    new_rating INTEGER NOT NULL,
    delta INTEGER NOT NULL,
    reason TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT consistent_delta CHECK (new_rating - prev_rating = delta)
);

CREATE INDEX IF NOT EXISTS idx_rating_history_student ON rating_history(student_id, created_at, seq);

CREATE TABLE IF NOT EXISTS grades (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    subject VARCHAR(100) NOT NULL,
    score INTEGER NOT NULL,
    is_exam BOOLEAN NOT NULL DEFAULT FALSE,
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_score CHECK (score BETWEEN 0 AND 100)
);

CREATE INDEX IF NOT EXISTS idx_grades_student ON grades(student_id, recorded_at);
`

const migration002Down = `
DROP TABLE IF EXISTS grades;
DROP TABLE IF EXISTS rating_history;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS achievement_definitions (
    code VARCHAR(50) PRIMARY KEY,
    title VARCHAR(100) NOT NULL,
    description TEXT NOT NULL,
    reward INTEGER NOT NULL DEFAULT 100
);

INSERT INTO achievement_definitions (code, title, description, reward) VALUES
    ('HIGH_PERFORMER', 'Отличник', 'Средний балл не ниже 4.5', 100),
    ('CODE_NINJA', 'Кодовый ниндзя', 'Две и более оценки от 95 по техническим предметам', 100),
    ('IRON_WILL', 'Железная воля', 'Выносливость не ниже 95', 100),
    ('SOCIAL_HUB', 'Душа компании', 'Социальность не ниже 80', 100),
    ('CYBER_GHOST', 'Кибер-призрак', 'Сдана криптография', 100)
ON CONFLICT (code) DO NOTHING;

CREATE TABLE IF NOT EXISTS achievements (
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    code VARCHAR(50) NOT NULL REFERENCES achievement_definitions(code),
    earned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (student_id, code)
);
`

const migration003Down = `
DROP TABLE IF EXISTS achievements;
DROP TABLE IF EXISTS achievement_definitions;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: SECURITY ALERTS AND ACTIVITY FEED
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
CREATE TABLE IF NOT EXISTS security_alerts (
    id UUID PRIMARY KEY,
    student_id UUID REFERENCES students(id) ON DELETE SET NULL,
    level VARCHAR(20) NOT NULL,
    message TEXT NOT NULL,
    source VARCHAR(50) NOT NULL,
    fingerprint CHAR(64) NOT NULL,
    is_resolved BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    resolved_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT valid_level CHECK (level IN ('INFO', 'WARNING', 'CRITICAL'))
);

-- At most one open alert per fingerprint.
CREATE UNIQUE INDEX IF NOT EXISTS uq_security_alerts_open_fingerprint
    ON security_alerts(fingerprint) WHERE NOT is_resolved;
CREATE INDEX IF NOT EXISTS idx_security_alerts_created ON security_alerts(created_at DESC);

CREATE TABLE IF NOT EXISTS activity_logs (
    id UUID PRIMARY KEY,
    student_id UUID REFERENCES students(id) ON DELETE SET NULL,
    event_type VARCHAR(20) NOT NULL,
    severity VARCHAR(10) NOT NULL,
    message TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_severity CHECK (severity IN ('INFO', 'SUCCESS', 'WARNING', 'ERROR'))
);

CREATE INDEX IF NOT EXISTS idx_activity_logs_created ON activity_logs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_activity_logs_type ON activity_logs(event_type, created_at DESC);
`

const migration004Down = `
DROP TABLE IF EXISTS activity_logs;
DROP TABLE IF EXISTS security_alerts;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 005: RATING HISTORY COMMIT ORDER
// ══════════════════════════════════════════════════════════════════════════════

// History is read in seq order; created_at carries the event time and may be
// backdated.
const migration005Up = `
DROP INDEX IF EXISTS idx_rating_history_student;
CREATE INDEX IF NOT EXISTS idx_rating_history_student_seq ON rating_history(student_id, seq);
`

const migration005Down = `
DROP INDEX IF EXISTS idx_rating_history_student_seq;
CREATE INDEX IF NOT EXISTS idx_rating_history_student ON rating_history(student_id, created_at, seq);
`
