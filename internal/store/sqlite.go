package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/pbaille/tiku/internal/domain"
)

//go:embed schema.sql
var schema string

// Store handles database operations
type Store struct {
	db *sql.DB
}

// New opens the database at dbPath and ensures the schema exists
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.Init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Init creates the config and questions tables if they are missing.
// It is safe to call on every startup.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetConfig returns the value stored under name. ok is false when the
// name was never written.
func (s *Store) GetConfig(ctx context.Context, name string) (value string, ok bool, err error) {
	var v sql.NullString
	err = s.db.QueryRowContext(ctx,
		"SELECT value FROM config WHERE name = ?",
		name,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get config %s: %w", name, err)
	}

	return v.String, true, nil
}

// SetConfig inserts or overwrites the value stored under name
func (s *Store) SetConfig(ctx context.Context, name, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO config (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		name, value,
	)
	if err != nil {
		return fmt.Errorf("set config %s: %w", name, err)
	}
	return nil
}

// InsertQuestion stores a question under its id. Stored questions are
// never overwritten: inserting an existing id fails with domain.ErrDuplicateID.
func (s *Store) InsertQuestion(ctx context.Context, q *domain.Question) error {
	data, err := q.Payload()
	if err != nil {
		return fmt.Errorf("encode question %d: %w", q.ID, err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO questions (id, data) VALUES (?, ?)",
		q.ID, string(data),
	)
	if isPrimaryKeyViolation(err) {
		return fmt.Errorf("insert question %d: %w", q.ID, domain.ErrDuplicateID)
	}
	if err != nil {
		return fmt.Errorf("insert question %d: %w", q.ID, err)
	}
	return nil
}

func isPrimaryKeyViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// GetQuestion retrieves a stored question by id
func (s *Store) GetQuestion(ctx context.Context, id int64) (*domain.Question, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM questions WHERE id = ?",
		id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get question %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get question %d: %w", id, err)
	}

	q, err := domain.DecodeQuestion([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("decode question %d: %w", id, err)
	}
	return q, nil
}

// ListQuestions returns stored questions in the order they were ingested.
// A limit <= 0 returns everything after offset.
func (s *Store) ListQuestions(ctx context.Context, limit, offset int) ([]domain.Question, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, data FROM questions ORDER BY rowid LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var (
			id   int64
			data string
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q, err := domain.DecodeQuestion([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("decode question %d: %w", id, err)
		}
		questions = append(questions, *q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return questions, nil
}

// QuestionIDs returns the set of every stored question id
func (s *Store) QuestionIDs(ctx context.Context) (domain.IDSet, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM questions")
	if err != nil {
		return nil, fmt.Errorf("list question ids: %w", err)
	}
	defer rows.Close()

	ids := make(domain.IDSet)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan question id: %w", err)
		}
		ids.Add(id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list question ids: %w", err)
	}
	return ids, nil
}

// CountQuestions returns the number of stored questions
func (s *Store) CountQuestions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM questions").Scan(&n); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}
