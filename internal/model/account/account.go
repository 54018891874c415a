package account

import (
	"time"

	"github.com/google/uuid"
)

// DefaultQuotaLimit is the storage ceiling given to new accounts (100 MiB).
const DefaultQuotaLimit int64 = 100 * 1024 * 1024

type Account struct {
	ID           uuid.UUID `json:"id"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email"`
	RootFolderID uuid.UUID `json:"root_folder_id"`
	BytesUsed    int64     `json:"bytes_used"`
	QuotaLimit   int64     `json:"quota_limit"`
	CreatedAt    time.Time `json:"created_at"`
}
