// Package changeset describes the rows touched by one committed storage
// operation. The facade hands a Changeset to the journal, which writes it in
// a single transaction.
package changeset

import (
	"github.com/google/uuid"

	"drive-service/internal/model/account"
	"drive-service/internal/model/fileInfo"
	"drive-service/internal/model/folder"
	"drive-service/internal/model/share"
)

type Changeset struct {
	Accounts []account.Account
	// Folders are upserted in order, parents before children.
	Folders []folder.Folder
	Files   []fileInfo.File
	Grants  []share.Grant

	RevokedGrants []share.Key
	DeletedFiles  []uuid.UUID
	// DeletedFolders are removed in order, children before parents.
	DeletedFolders []uuid.UUID

	// Usage carries the ledger's bytes_used for every account it touched.
	Usage map[uuid.UUID]int64
}

func (c *Changeset) SetUsage(accountID uuid.UUID, used int64) {
	if c.Usage == nil {
		c.Usage = make(map[uuid.UUID]int64)
	}
	c.Usage[accountID] = used
}

func (c *Changeset) Empty() bool {
	return len(c.Accounts) == 0 && len(c.Folders) == 0 && len(c.Files) == 0 &&
		len(c.Grants) == 0 && len(c.RevokedGrants) == 0 && len(c.DeletedFiles) == 0 &&
		len(c.DeletedFolders) == 0 && len(c.Usage) == 0
}

// Snapshot is the full persisted state, loaded at start-up.
type Snapshot struct {
	Accounts []account.Account
	Folders  []folder.Folder
	Files    []fileInfo.File
	Grants   []share.Grant
}
