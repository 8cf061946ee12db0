package port

import (
	"context"
	"time"
)

// FileStorage defines file storage operations
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error
	GetFullPath(relativePath string) string
}

// LedgerRow is one WorkItem of a ledger export with its order context
type LedgerRow struct {
	OrderNumber      string
	Stage            string
	AssignedUser     string
	Status           string
	AttemptNumber    int
	AssignedAt       time.Time
	CompletedAt      *time.Time
	TimeSpentSeconds int64
	Comments         string
	ReworkReason     string
	RejectionCode    string
}

// LedgerRenderer renders ledger rows into a spreadsheet document
type LedgerRenderer interface {
	Render(title string, rows []LedgerRow) ([]byte, error)
}
