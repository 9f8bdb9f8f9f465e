package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/docverify/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sqlx.Connect("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS proposers (
		proposer_id INTEGER PRIMARY KEY,
		customer_name TEXT NOT NULL,
		dob TEXT,
		pan_number TEXT,
		annual_income REAL,
		age INTEGER,
		sex TEXT
	);

	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		proposer_id INTEGER NOT NULL,
		proposal_number TEXT NOT NULL DEFAULT '',
		document_type TEXT NOT NULL,
		source_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (proposer_id) REFERENCES proposers(proposer_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_documents_proposer_id ON documents(proposer_id);
	`
	_, err := db.Exec(schema)
	return err
}

// GetProposer returns a proposer by ID.
func (s *SQLiteStore) GetProposer(ctx context.Context, id int64) (*models.Proposer, error) {
	var p models.Proposer
	err := s.db.GetContext(ctx, &p,
		`SELECT proposer_id, customer_name, dob, pan_number, annual_income, age, sex
		 FROM proposers WHERE proposer_id = ?`, id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("proposer %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProposer inserts a proposer or replaces the stored fields of an existing one.
func (s *SQLiteStore) UpsertProposer(ctx context.Context, p *models.Proposer) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO proposers (proposer_id, customer_name, dob, pan_number, annual_income, age, sex)
		 VALUES (:proposer_id, :customer_name, :dob, :pan_number, :annual_income, :age, :sex)
		 ON CONFLICT(proposer_id) DO UPDATE SET
			customer_name = excluded.customer_name,
			dob = excluded.dob,
			pan_number = excluded.pan_number,
			annual_income = excluded.annual_income,
			age = excluded.age,
			sex = excluded.sex`,
		p,
	)
	return err
}

// GetDocument returns a document record by ID.
func (s *SQLiteStore) GetDocument(ctx context.Context, id int64) (*models.DocumentRecord, error) {
	var doc models.DocumentRecord
	err := s.db.GetContext(ctx, &doc,
		`SELECT id, proposer_id, proposal_number, document_type, source_url, created_at
		 FROM documents WHERE id = ?`, id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// CreateDocument inserts a document record. A zero ID is assigned by the database.
func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *models.DocumentRecord) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	var (
		res sql.Result
		err error
	)
	if doc.ID == 0 {
		res, err = s.db.NamedExecContext(ctx,
			`INSERT INTO documents (proposer_id, proposal_number, document_type, source_url, created_at)
			 VALUES (:proposer_id, :proposal_number, :document_type, :source_url, :created_at)`, doc)
	} else {
		res, err = s.db.NamedExecContext(ctx,
			`INSERT INTO documents (id, proposer_id, proposal_number, document_type, source_url, created_at)
			 VALUES (:id, :proposer_id, :proposal_number, :document_type, :source_url, :created_at)`, doc)
	}
	if err != nil {
		return err
	}
	if doc.ID == 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		doc.ID = id
	}
	return nil
}

// ListDocumentsByProposer returns a proposer's documents, oldest first.
func (s *SQLiteStore) ListDocumentsByProposer(ctx context.Context, proposerID int64) ([]*models.DocumentRecord, error) {
	var docs []*models.DocumentRecord
	err := s.db.SelectContext(ctx, &docs,
		`SELECT id, proposer_id, proposal_number, document_type, source_url, created_at
		 FROM documents WHERE proposer_id = ? ORDER BY created_at, id`, proposerID,
	)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// CountProposers returns the total number of proposers.
func (s *SQLiteStore) CountProposers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM proposers`)
	return count, err
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStore) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM documents`)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
