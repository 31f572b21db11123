// Package store persists grade records and stored admin provider
// configuration in sqlite. Idempotency lives here: a session that already
// has a grade short-circuits before the orchestrator runs again.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/langexam/grader/internal/model"

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
	CREATE TABLE IF NOT EXISTS grades (
		session_id TEXT PRIMARY KEY,
		student_name TEXT NOT NULL DEFAULT '',
		exam_type TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		feedback TEXT NOT NULL DEFAULT '',
		score INTEGER NOT NULL DEFAULT 0,
		provider_used TEXT NOT NULL DEFAULT '',
		model_used TEXT NOT NULL DEFAULT '',
		chunks_used INTEGER NOT NULL DEFAULT 0,
		error_note TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS provider_configs (
		id TEXT PRIMARY KEY,
		api_key TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		base_url TEXT NOT NULL DEFAULT '',
		fallback_models TEXT NOT NULL DEFAULT '[]',
		updated_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveOutcome upserts the grade record for a session.
func (s *Store) SaveOutcome(sessionID string, req model.GradingRequest, out model.GradeOutcome) error {
	_, err := s.db.Exec(
		`INSERT INTO grades (session_id, student_name, exam_type, summary, feedback, score,
		                     provider_used, model_used, chunks_used, error_note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   student_name = excluded.student_name,
		   exam_type = excluded.exam_type,
		   summary = excluded.summary,
		   feedback = excluded.feedback,
		   score = excluded.score,
		   provider_used = excluded.provider_used,
		   model_used = excluded.model_used,
		   chunks_used = excluded.chunks_used,
		   error_note = excluded.error_note`,
		sessionID, req.StudentName, string(req.ExamType),
		out.Summary, out.Feedback, out.Score,
		out.ProviderUsed, out.ModelUsed, out.ChunksUsed, out.ErrorNote,
		time.Now().UTC(),
	)
	return err
}

// GetOutcome returns the stored grade for a session, if one exists.
func (s *Store) GetOutcome(sessionID string) (model.GradeOutcome, bool, error) {
	var out model.GradeOutcome
	err := s.db.QueryRow(
		`SELECT summary, feedback, score, provider_used, model_used, chunks_used, error_note
		 FROM grades WHERE session_id = ?`, sessionID,
	).Scan(&out.Summary, &out.Feedback, &out.Score,
		&out.ProviderUsed, &out.ModelUsed, &out.ChunksUsed, &out.ErrorNote)
	if err == sql.ErrNoRows {
		return model.GradeOutcome{}, false, nil
	}
	if err != nil {
		return model.GradeOutcome{}, false, err
	}
	return out, true, nil
}

// SetProviderConfig upserts stored admin configuration for a provider.
func (s *Store) SetProviderConfig(cfg model.ProviderConfig) error {
	fallbacks, err := json.Marshal(cfg.FallbackModels)
	if err != nil {
		return fmt.Errorf("marshal fallback models: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO provider_configs (id, api_key, model, base_url, fallback_models, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   api_key = excluded.api_key,
		   model = excluded.model,
		   base_url = excluded.base_url,
		   fallback_models = excluded.fallback_models,
		   updated_at = excluded.updated_at`,
		cfg.ID, cfg.APIKey, cfg.Model, cfg.BaseURL, string(fallbacks), time.Now().UTC(),
	)
	return err
}

// ProviderConfig returns the stored admin configuration for a provider.
// It implements provider.ConfigSource.
func (s *Store) ProviderConfig(id string) (model.ProviderConfig, bool, error) {
	cfg := model.ProviderConfig{ID: id}
	var fallbacks string
	err := s.db.QueryRow(
		`SELECT api_key, model, base_url, fallback_models FROM provider_configs WHERE id = ?`, id,
	).Scan(&cfg.APIKey, &cfg.Model, &cfg.BaseURL, &fallbacks)
	if err == sql.ErrNoRows {
		return model.ProviderConfig{}, false, nil
	}
	if err != nil {
		return model.ProviderConfig{}, false, err
	}
	if err := json.Unmarshal([]byte(fallbacks), &cfg.FallbackModels); err != nil {
		return model.ProviderConfig{}, false, fmt.Errorf("parse fallback models for %s: %w", id, err)
	}
	return cfg, true, nil
}
