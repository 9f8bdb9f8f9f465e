// Package storage defines record lookup for proposers and their documents.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/docverify/internal/models"
)

// ErrNotFound is returned when a proposer or document does not exist.
var ErrNotFound = errors.New("not found")

// Store is the read side used by verification, plus the writes needed to seed it.
// Verification results are never written back.
type Store interface {
	GetProposer(ctx context.Context, id int64) (*models.Proposer, error)
	GetDocument(ctx context.Context, id int64) (*models.DocumentRecord, error)
	ListDocumentsByProposer(ctx context.Context, proposerID int64) ([]*models.DocumentRecord, error)

	// Seeding
	UpsertProposer(ctx context.Context, p *models.Proposer) error
	CreateDocument(ctx context.Context, doc *models.DocumentRecord) error

	// Stats
	CountProposers(ctx context.Context) (int64, error)
	CountDocuments(ctx context.Context) (int64, error)

	Close() error
}
