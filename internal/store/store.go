package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/mentor/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'learner',
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS modules (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		topic TEXT NOT NULL DEFAULT '',
		learning_objectives TEXT NOT NULL DEFAULT '[]',
		difficulty_level INTEGER NOT NULL DEFAULT 1,
		estimated_time INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS learner_profiles (
		user_id INTEGER PRIMARY KEY,
		cognitive_patterns TEXT NOT NULL DEFAULT '{}',
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS modality_stats (
		user_id INTEGER NOT NULL,
		modality TEXT NOT NULL,
		effectiveness_score REAL NOT NULL DEFAULT 0.5,
		sessions_count INTEGER NOT NULL DEFAULT 0,
		avg_retention REAL NOT NULL DEFAULT 0.5,
		avg_engagement REAL NOT NULL DEFAULT 0.5,
		last_updated DATETIME,
		PRIMARY KEY (user_id, modality),
		FOREIGN KEY (user_id) REFERENCES learner_profiles(user_id)
	);

	CREATE TABLE IF NOT EXISTS learning_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		module_id TEXT NOT NULL,
		modality_used TEXT NOT NULL,
		selection_reason TEXT NOT NULL DEFAULT '',
		duration INTEGER NOT NULL DEFAULT 0,
		questions_asked INTEGER NOT NULL DEFAULT 0,
		engagement_score REAL,
		comprehension_score REAL,
		retention_score REAL,
		created_at DATETIME NOT NULL,
		completed_at DATETIME,
		FOREIGN KEY (user_id) REFERENCES users(id),
		FOREIGN KEY (module_id) REFERENCES modules(id)
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES learning_sessions(id)
	);

	CREATE TABLE IF NOT EXISTS retention_tests (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		user_id INTEGER NOT NULL,
		concept_id TEXT NOT NULL,
		interval_hours INTEGER NOT NULL,
		scheduled_at DATETIME NOT NULL,
		completed_at DATETIME,
		recall_accuracy REAL,
		confidence_level REAL,
		application_ability REAL,
		response TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (session_id) REFERENCES learning_sessions(id),
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS concept_mastery (
		user_id INTEGER NOT NULL,
		concept_id TEXT NOT NULL,
		mastery_level REAL NOT NULL DEFAULT 0,
		times_practiced INTEGER NOT NULL DEFAULT 0,
		successful_applications INTEGER NOT NULL DEFAULT 0,
		first_learned DATETIME NOT NULL,
		last_reviewed DATETIME,
		PRIMARY KEY (user_id, concept_id),
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS module_progress (
		user_id INTEGER NOT NULL,
		module_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'not_started',
		mastery_score REAL NOT NULL DEFAULT 0,
		completion_percentage REAL NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		PRIMARY KEY (user_id, module_id),
		FOREIGN KEY (user_id) REFERENCES users(id),
		FOREIGN KEY (module_id) REFERENCES modules(id)
	);

	CREATE TABLE IF NOT EXISTS tutor_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_retention_tests_due
		ON retention_tests (user_id, scheduled_at) WHERE completed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON learning_sessions (user_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertModule stores a module.
func (s *Store) InsertModule(m model.Module) error {
	objectives, err := json.Marshal(m.LearningObjectives)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO modules (id, title, description, topic, learning_objectives, difficulty_level, estimated_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Title, m.Description, m.Topic, string(objectives), m.DifficultyLevel, m.EstimatedTime,
	)
	return err
}

func scanModule(row *sql.Row) (model.Module, error) {
	var m model.Module
	var objectives string
	err := row.Scan(&m.ID, &m.Title, &m.Description, &m.Topic, &objectives, &m.DifficultyLevel, &m.EstimatedTime)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal([]byte(objectives), &m.LearningObjectives); err != nil {
		return m, fmt.Errorf("parse objectives for module %s: %w", m.ID, err)
	}
	return m, nil
}

// GetModule returns a module by ID, or nil if it does not exist.
func (s *Store) GetModule(id string) (*model.Module, error) {
	row := s.db.QueryRow(
		`SELECT id, title, description, topic, learning_objectives, difficulty_level, estimated_time
		 FROM modules WHERE id = ?`, id,
	)
	m, err := scanModule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListModules returns all modules ordered by difficulty, then ID.
func (s *Store) ListModules() ([]model.Module, error) {
	rows, err := s.db.Query(
		`SELECT id, title, description, topic, learning_objectives, difficulty_level, estimated_time
		 FROM modules ORDER BY difficulty_level, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var modules []model.Module
	for rows.Next() {
		var m model.Module
		var objectives string
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.Topic, &objectives, &m.DifficultyLevel, &m.EstimatedTime); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(objectives), &m.LearningObjectives); err != nil {
			return nil, fmt.Errorf("parse objectives for module %s: %w", m.ID, err)
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

// ModuleCount returns the number of modules in the database.
func (s *Store) ModuleCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM modules`).Scan(&count)
	return count, err
}

// GetLearnerProfile returns the learner profile for a user, or nil if the
// user has no profile yet.
func (s *Store) GetLearnerProfile(userID int64) (*model.LearnerProfile, error) {
	var p model.LearnerProfile
	var patterns string
	err := s.db.QueryRow(
		`SELECT user_id, cognitive_patterns, updated_at FROM learner_profiles WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &patterns, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(patterns), &p.Patterns); err != nil {
		return nil, fmt.Errorf("parse cognitive patterns for user %d: %w", userID, err)
	}

	rows, err := s.db.Query(
		`SELECT modality, effectiveness_score, sessions_count, avg_retention, avg_engagement, last_updated
		 FROM modality_stats WHERE user_id = ?`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	p.Stats = make(map[model.Modality]model.ModalityStats)
	for rows.Next() {
		var modality string
		var st model.ModalityStats
		if err := rows.Scan(&modality, &st.EffectivenessScore, &st.SessionsCount, &st.AvgRetention, &st.AvgEngagement, &st.LastUpdated); err != nil {
			return nil, err
		}
		p.Stats[model.Modality(modality)] = st
	}
	return &p, rows.Err()
}

// SaveLearnerProfile upserts a learner profile and all of its modality stats
// in a single transaction.
func (s *Store) SaveLearnerProfile(p *model.LearnerProfile) error {
	patterns, err := json.Marshal(p.Patterns)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO learner_profiles (user_id, cognitive_patterns, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET cognitive_patterns = ?, updated_at = ?`,
		p.UserID, string(patterns), p.UpdatedAt, string(patterns), p.UpdatedAt,
	)
	if err != nil {
		return err
	}

	for modality, st := range p.Stats {
		_, err = tx.Exec(
			`INSERT INTO modality_stats (user_id, modality, effectiveness_score, sessions_count, avg_retention, avg_engagement, last_updated)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(user_id, modality) DO UPDATE SET
			   effectiveness_score = ?, sessions_count = ?, avg_retention = ?, avg_engagement = ?, last_updated = ?`,
			p.UserID, string(modality), st.EffectivenessScore, st.SessionsCount, st.AvgRetention, st.AvgEngagement, st.LastUpdated,
			st.EffectivenessScore, st.SessionsCount, st.AvgRetention, st.AvgEngagement, st.LastUpdated,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// CreateSession inserts a learning session record.
func (s *Store) CreateSession(sess *model.LearningSession) error {
	_, err := s.db.Exec(
		`INSERT INTO learning_sessions (id, user_id, module_id, modality_used, selection_reason, duration, questions_asked, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.ModuleID, sess.ModalityUsed, sess.SelectionReason, sess.Duration, sess.QuestionsAsked, sess.CreatedAt,
	)
	return err
}

// GetSession returns a session by ID, or nil if it does not exist.
func (s *Store) GetSession(id string) (*model.LearningSession, error) {
	var sess model.LearningSession
	err := s.db.QueryRow(
		`SELECT id, user_id, module_id, modality_used, selection_reason, duration, questions_asked,
		        engagement_score, comprehension_score, retention_score, created_at, completed_at
		 FROM learning_sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.UserID, &sess.ModuleID, &sess.ModalityUsed, &sess.SelectionReason,
		&sess.Duration, &sess.QuestionsAsked, &sess.EngagementScore, &sess.ComprehensionScore,
		&sess.RetentionScore, &sess.CreatedAt, &sess.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListSessions returns all sessions for a user, most recent first.
func (s *Store) ListSessions(userID int64) ([]model.LearningSession, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, module_id, modality_used, selection_reason, duration, questions_asked,
		        engagement_score, comprehension_score, retention_score, created_at, completed_at
		 FROM learning_sessions WHERE user_id = ? ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []model.LearningSession
	for rows.Next() {
		var sess model.LearningSession
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.ModuleID, &sess.ModalityUsed, &sess.SelectionReason,
			&sess.Duration, &sess.QuestionsAsked, &sess.EngagementScore, &sess.ComprehensionScore,
			&sess.RetentionScore, &sess.CreatedAt, &sess.CompletedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// CompleteSession records a session's outcome scores and completion time.
// Only sessions not yet completed are updated; the returned bool reports
// whether the update took effect.
func (s *Store) CompleteSession(id string, engagement, comprehension float64, duration int, completedAt time.Time) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE learning_sessions
		 SET engagement_score = ?, comprehension_score = ?, duration = ?, completed_at = ?
		 WHERE id = ? AND completed_at IS NULL`,
		engagement, comprehension, duration, completedAt, id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetSessionRetentionScore backfills a session's retention score.
func (s *Store) SetSessionRetentionScore(id string, score float64) error {
	_, err := s.db.Exec(`UPDATE learning_sessions SET retention_score = ? WHERE id = ?`, score, id)
	return err
}

// IncrementQuestionsAsked bumps the questions counter for a session.
func (s *Store) IncrementQuestionsAsked(id string) error {
	_, err := s.db.Exec(`UPDATE learning_sessions SET questions_asked = questions_asked + 1 WHERE id = ?`, id)
	return err
}

// AddChatMessage inserts a message into a session's conversation.
func (s *Store) AddChatMessage(msg model.ChatMessage) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO chat_messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		msg.SessionID, msg.Role, msg.Content, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetChatMessages returns the most recent messages for a session in
// chronological order. A limit of 0 returns all messages.
func (s *Store) GetChatMessages(sessionID string, limit int) ([]model.ChatMessage, error) {
	query := `SELECT id, session_id, role, content, created_at FROM chat_messages WHERE session_id = ? ORDER BY id`
	var args []any
	args = append(args, sessionID)
	if limit > 0 {
		query = `SELECT id, session_id, role, content, created_at FROM (
			SELECT id, session_id, role, content, created_at FROM chat_messages
			WHERE session_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var messages []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// CreateRetentionTest inserts a scheduled retention test.
func (s *Store) CreateRetentionTest(t *model.RetentionTest) error {
	_, err := s.db.Exec(
		`INSERT INTO retention_tests (id, session_id, user_id, concept_id, interval_hours, scheduled_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.SessionID, t.UserID, t.ConceptID, t.IntervalHours, t.ScheduledAt,
	)
	return err
}

// GetRetentionTest returns a retention test by ID, or nil if it does not exist.
func (s *Store) GetRetentionTest(id string) (*model.RetentionTest, error) {
	var t model.RetentionTest
	err := s.db.QueryRow(
		`SELECT id, session_id, user_id, concept_id, interval_hours, scheduled_at, completed_at,
		        recall_accuracy, confidence_level, application_ability, response
		 FROM retention_tests WHERE id = ?`, id,
	).Scan(&t.ID, &t.SessionID, &t.UserID, &t.ConceptID, &t.IntervalHours, &t.ScheduledAt,
		&t.CompletedAt, &t.RecallAccuracy, &t.ConfidenceLevel, &t.ApplicationAbility, &t.Response)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListDueRetentionTests returns all tests for a user with scheduled_at at or
// before now and no completion yet, soonest first.
func (s *Store) ListDueRetentionTests(userID int64, now time.Time) ([]model.RetentionTest, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, user_id, concept_id, interval_hours, scheduled_at, completed_at,
		        recall_accuracy, confidence_level, application_ability, response
		 FROM retention_tests
		 WHERE user_id = ? AND scheduled_at <= ? AND completed_at IS NULL
		 ORDER BY scheduled_at`, userID, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRetentionTests(rows)
}

// ListCompletedRetentionTests returns all completed tests for a user.
func (s *Store) ListCompletedRetentionTests(userID int64) ([]model.RetentionTest, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, user_id, concept_id, interval_hours, scheduled_at, completed_at,
		        recall_accuracy, confidence_level, application_ability, response
		 FROM retention_tests
		 WHERE user_id = ? AND completed_at IS NOT NULL
		 ORDER BY completed_at`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRetentionTests(rows)
}

func scanRetentionTests(rows *sql.Rows) ([]model.RetentionTest, error) {
	var tests []model.RetentionTest
	for rows.Next() {
		var t model.RetentionTest
		if err := rows.Scan(&t.ID, &t.SessionID, &t.UserID, &t.ConceptID, &t.IntervalHours, &t.ScheduledAt,
			&t.CompletedAt, &t.RecallAccuracy, &t.ConfidenceLevel, &t.ApplicationAbility, &t.Response); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// CompleteRetentionTest records a test's scores, response, and completion
// time. Only rows not yet completed are updated; the returned bool reports
// whether the update took effect.
func (s *Store) CompleteRetentionTest(t *model.RetentionTest) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE retention_tests
		 SET completed_at = ?, recall_accuracy = ?, confidence_level = ?, application_ability = ?, response = ?
		 WHERE id = ? AND completed_at IS NULL`,
		t.CompletedAt, t.RecallAccuracy, t.ConfidenceLevel, t.ApplicationAbility, t.Response, t.ID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetConceptMastery returns mastery for a (user, concept) pair, or nil when
// the concept has never been tested.
func (s *Store) GetConceptMastery(userID int64, conceptID string) (*model.ConceptMastery, error) {
	var m model.ConceptMastery
	err := s.db.QueryRow(
		`SELECT user_id, concept_id, mastery_level, times_practiced, successful_applications, first_learned, last_reviewed
		 FROM concept_mastery WHERE user_id = ? AND concept_id = ?`, userID, conceptID,
	).Scan(&m.UserID, &m.ConceptID, &m.MasteryLevel, &m.TimesPracticed, &m.SuccessfulApplications, &m.FirstLearned, &m.LastReviewed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpsertConceptMastery inserts or updates a mastery record.
func (s *Store) UpsertConceptMastery(m *model.ConceptMastery) error {
	_, err := s.db.Exec(
		`INSERT INTO concept_mastery (user_id, concept_id, mastery_level, times_practiced, successful_applications, first_learned, last_reviewed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, concept_id) DO UPDATE SET
		   mastery_level = ?, times_practiced = ?, successful_applications = ?, last_reviewed = ?`,
		m.UserID, m.ConceptID, m.MasteryLevel, m.TimesPracticed, m.SuccessfulApplications, m.FirstLearned, m.LastReviewed,
		m.MasteryLevel, m.TimesPracticed, m.SuccessfulApplications, m.LastReviewed,
	)
	return err
}

// ListConceptMastery returns all mastery records for a user, strongest first.
func (s *Store) ListConceptMastery(userID int64) ([]model.ConceptMastery, error) {
	rows, err := s.db.Query(
		`SELECT user_id, concept_id, mastery_level, times_practiced, successful_applications, first_learned, last_reviewed
		 FROM concept_mastery WHERE user_id = ? ORDER BY mastery_level DESC, concept_id`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []model.ConceptMastery
	for rows.Next() {
		var m model.ConceptMastery
		if err := rows.Scan(&m.UserID, &m.ConceptID, &m.MasteryLevel, &m.TimesPracticed, &m.SuccessfulApplications, &m.FirstLearned, &m.LastReviewed); err != nil {
			return nil, err
		}
		records = append(records, m)
	}
	return records, rows.Err()
}

// GetModuleProgress returns a learner's progress on a module, or nil when
// the module has never been started.
func (s *Store) GetModuleProgress(userID int64, moduleID string) (*model.ModuleProgress, error) {
	var p model.ModuleProgress
	err := s.db.QueryRow(
		`SELECT user_id, module_id, status, mastery_score, completion_percentage, started_at, completed_at
		 FROM module_progress WHERE user_id = ? AND module_id = ?`, userID, moduleID,
	).Scan(&p.UserID, &p.ModuleID, &p.Status, &p.MasteryScore, &p.CompletionPercentage, &p.StartedAt, &p.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertModuleProgress inserts or updates a progress record.
func (s *Store) UpsertModuleProgress(p *model.ModuleProgress) error {
	_, err := s.db.Exec(
		`INSERT INTO module_progress (user_id, module_id, status, mastery_score, completion_percentage, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, module_id) DO UPDATE SET
		   status = ?, mastery_score = ?, completion_percentage = ?, completed_at = ?`,
		p.UserID, p.ModuleID, p.Status, p.MasteryScore, p.CompletionPercentage, p.StartedAt, p.CompletedAt,
		p.Status, p.MasteryScore, p.CompletionPercentage, p.CompletedAt,
	)
	return err
}

// ListModuleProgress returns all progress records for a user.
func (s *Store) ListModuleProgress(userID int64) ([]model.ModuleProgress, error) {
	rows, err := s.db.Query(
		`SELECT user_id, module_id, status, mastery_score, completion_percentage, started_at, completed_at
		 FROM module_progress WHERE user_id = ? ORDER BY module_id`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []model.ModuleProgress
	for rows.Next() {
		var p model.ModuleProgress
		if err := rows.Scan(&p.UserID, &p.ModuleID, &p.Status, &p.MasteryScore, &p.CompletionPercentage, &p.StartedAt, &p.CompletedAt); err != nil {
			return nil, err
		}
		records = append(records, p)
	}
	return records, rows.Err()
}
