package storageService

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"drive-service/internal/blob/memBlob"
	"drive-service/internal/model/account"
	"drive-service/internal/model/changeset"
	"drive-service/internal/model/fileInfo"
	"drive-service/internal/model/folder"
	"drive-service/internal/model/share"
	"drive-service/internal/service/quotaLedger"
)

var errJournalDown = errors.New("journal down")

// snapshotJournal applies committed changesets to an in-memory snapshot and
// can be switched into failing mode.
type snapshotJournal struct {
	mu      sync.Mutex
	failing bool
	commits int
	snap    changeset.Snapshot
}

func (j *snapshotJournal) setFailing(v bool) {
	j.mu.Lock()
	j.failing = v
	j.mu.Unlock()
}

func (j *snapshotJournal) Commit(_ context.Context, cs *changeset.Changeset) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failing {
		return errJournalDown
	}
	j.commits++

	for _, a := range cs.Accounts {
		if i := slices.IndexFunc(j.snap.Accounts, func(x account.Account) bool { return x.ID == a.ID }); i >= 0 {
			a.BytesUsed = j.snap.Accounts[i].BytesUsed
			j.snap.Accounts[i] = a
		} else {
			j.snap.Accounts = append(j.snap.Accounts, a)
		}
	}
	for _, f := range cs.Folders {
		if i := slices.IndexFunc(j.snap.Folders, func(x folder.Folder) bool { return x.ID == f.ID }); i >= 0 {
			j.snap.Folders[i] = f
		} else {
			j.snap.Folders = append(j.snap.Folders, f)
		}
	}
	for _, f := range cs.Files {
		if i := slices.IndexFunc(j.snap.Files, func(x fileInfo.File) bool { return x.ID == f.ID }); i >= 0 {
			j.snap.Files[i] = f
		} else {
			j.snap.Files = append(j.snap.Files, f)
		}
	}
	for _, g := range cs.Grants {
		if i := slices.IndexFunc(j.snap.Grants, func(x share.Grant) bool { return x.Key() == g.Key() }); i >= 0 {
			j.snap.Grants[i] = g
		} else {
			j.snap.Grants = append(j.snap.Grants, g)
		}
	}
	for _, k := range cs.RevokedGrants {
		j.snap.Grants = slices.DeleteFunc(j.snap.Grants, func(x share.Grant) bool { return x.Key() == k })
	}
	for _, id := range cs.DeletedFiles {
		j.snap.Files = slices.DeleteFunc(j.snap.Files, func(x fileInfo.File) bool { return x.ID == id })
	}
	for _, id := range cs.DeletedFolders {
		j.snap.Folders = slices.DeleteFunc(j.snap.Folders, func(x folder.Folder) bool { return x.ID == id })
	}
	for id, used := range cs.Usage {
		if i := slices.IndexFunc(j.snap.Accounts, func(x account.Account) bool { return x.ID == id }); i >= 0 {
			j.snap.Accounts[i].BytesUsed = used
		}
	}
	return nil
}

func (j *snapshotJournal) snapshot() *changeset.Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return &changeset.Snapshot{
		Accounts: slices.Clone(j.snap.Accounts),
		Folders:  slices.Clone(j.snap.Folders),
		Files:    slices.Clone(j.snap.Files),
		Grants:   slices.Clone(j.snap.Grants),
	}
}

type brokenDeletes struct {
	*memBlob.Store
}

func (brokenDeletes) Delete(context.Context, string) error {
	return errors.New("bucket unreachable")
}

// failingReleases is a ledger whose Release always errors, as a Redis
// ledger does when the connection drops mid-delete.
type failingReleases struct {
	quotaLedger.Ledger
}

func (failingReleases) Release(context.Context, uuid.UUID, int64) error {
	return errors.New("ledger unreachable")
}

type recordingNotifier struct {
	mu   sync.Mutex
	err  error
	sent []string
}

func (n *recordingNotifier) Notify(_ context.Context, to, subject, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, to+": "+subject)
	return nil
}

type fixture struct {
	svc     *Service
	blobs   *memBlob.Store
	journal *snapshotJournal
}

func newFixture(t *testing.T, quota int64) *fixture {
	t.Helper()
	blobs := memBlob.New()
	j := &snapshotJournal{}
	return &fixture{
		svc:     New(Deps{Blobs: blobs, Journal: j, DefaultQuota: quota}),
		blobs:   blobs,
		journal: j,
	}
}

func (fx *fixture) register(t *testing.T, name string) *account.Account {
	t.Helper()
	acct, err := fx.svc.RegisterAccount(context.Background(), name, strings.ToLower(name)+"@example.com")
	require.NoError(t, err)
	return acct
}

func (fx *fixture) upload(t *testing.T, acct uuid.UUID, folderID *uuid.UUID, name string, size int) *fileInfo.File {
	t.Helper()
	f, err := fx.svc.Upload(context.Background(), acct, UploadRequest{
		FolderID: folderID,
		Name:     name,
		Content:  strings.NewReader(strings.Repeat("x", size)),
		Size:     int64(size),
	})
	require.NoError(t, err)
	return f
}

func (fx *fixture) used(t *testing.T, acct uuid.UUID) int64 {
	t.Helper()
	u, err := fx.svc.Usage(context.Background(), acct)
	require.NoError(t, err)
	return u.BytesUsed
}
