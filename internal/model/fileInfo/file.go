package fileInfo

import (
	"time"

	"github.com/google/uuid"
)

// File is a file record. Its Size is charged to OwnerID only, even when the
// file is shared.
type File struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	FolderID    uuid.UUID `json:"folder_id"`
	Name        string    `json:"name"`
	BlobHandle  string    `json:"blob_handle"`
	Size        int64     `json:"size"`
	Checksum    string    `json:"checksum"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
}

func (f *File) Clone() *File {
	c := *f
	return &c
}
