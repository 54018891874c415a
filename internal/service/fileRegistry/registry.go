// Package fileRegistry maps file records to their folder, owner and blob
// handle. Creating a record reserves quota on the owner's account first;
// deleting one releases it.
package fileRegistry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"drive-service/internal/errs"
	"drive-service/internal/model/fileInfo"
	"drive-service/internal/service/folderTree"
	"drive-service/internal/service/quotaLedger"
)

// FolderOwners resolves the owning account of a folder.
type FolderOwners interface {
	Owner(folderID uuid.UUID) (uuid.UUID, error)
}

type NewFile struct {
	OwnerID     uuid.UUID
	FolderID    uuid.UUID
	Name        string
	BlobHandle  string
	Size        int64
	Checksum    string
	ContentType string
}

type Registry struct {
	mu       sync.RWMutex
	folders  FolderOwners
	ledger   quotaLedger.Ledger
	files    map[uuid.UUID]*fileInfo.File
	byFolder map[uuid.UUID][]uuid.UUID
	refs     map[string]int
	now      func() time.Time
}

func New(folders FolderOwners, ledger quotaLedger.Ledger) *Registry {
	return &Registry{
		folders:  folders,
		ledger:   ledger,
		files:    make(map[uuid.UUID]*fileInfo.File),
		byFolder: make(map[uuid.UUID][]uuid.UUID),
		refs:     make(map[string]int),
		now:      time.Now,
	}
}

func (r *Registry) CreateFile(ctx context.Context, in NewFile) (*fileInfo.File, error) {
	if err := folderTree.ValidateName(in.Name); err != nil {
		return nil, err
	}
	if in.BlobHandle == "" {
		return nil, fmt.Errorf("empty blob handle: %w", errs.ErrInvalidArgument)
	}
	if in.Size < 0 {
		return nil, fmt.Errorf("negative size %d: %w", in.Size, errs.ErrInvalidArgument)
	}
	owner, err := r.folders.Owner(in.FolderID)
	if err != nil {
		return nil, err
	}
	if owner != in.OwnerID {
		return nil, fmt.Errorf("folder %s: %w", in.FolderID, errs.ErrNotFound)
	}

	if err := r.ledger.Reserve(ctx, in.OwnerID, in.Size); err != nil {
		return nil, err
	}

	now := r.now()
	f := &fileInfo.File{
		ID:          uuid.New(),
		OwnerID:     in.OwnerID,
		FolderID:    in.FolderID,
		Name:        in.Name,
		BlobHandle:  in.BlobHandle,
		Size:        in.Size,
		Checksum:    in.Checksum,
		ContentType: in.ContentType,
		CreatedAt:   now,
		ModifiedAt:  now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(f)
	return f.Clone(), nil
}

// CopyFile creates a new record pointing at the same blob handle, charged
// again against the owner's quota.
func (r *Registry) CopyFile(ctx context.Context, fileID, destFolderID uuid.UUID) (*fileInfo.File, error) {
	src, err := r.Get(fileID)
	if err != nil {
		return nil, err
	}
	return r.CreateFile(ctx, NewFile{
		OwnerID:     src.OwnerID,
		FolderID:    destFolderID,
		Name:        src.Name,
		BlobHandle:  src.BlobHandle,
		Size:        src.Size,
		Checksum:    src.Checksum,
		ContentType: src.ContentType,
	})
}

// RenameFile returns the previous name.
func (r *Registry) RenameFile(fileID uuid.UUID, name string) (string, error) {
	if err := folderTree.ValidateName(name); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files[fileID]
	if !ok {
		return "", fmt.Errorf("file %s: %w", fileID, errs.ErrNotFound)
	}
	old := f.Name
	f.Name = name
	f.ModifiedAt = r.now()
	return old, nil
}

// MoveFile refiles a record and returns its previous folder.
func (r *Registry) MoveFile(fileID, folderID uuid.UUID) (uuid.UUID, error) {
	owner, err := r.folders.Owner(folderID)
	if err != nil {
		return uuid.Nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files[fileID]
	if !ok {
		return uuid.Nil, fmt.Errorf("file %s: %w", fileID, errs.ErrNotFound)
	}
	if owner != f.OwnerID {
		return uuid.Nil, fmt.Errorf("folder %s belongs to another account: %w", folderID, errs.ErrForbidden)
	}
	old := f.FolderID
	if old == folderID {
		return old, nil
	}
	r.unindexLocked(f)
	f.FolderID = folderID
	f.ModifiedAt = r.now()
	r.byFolder[folderID] = append(r.byFolder[folderID], f.ID)
	return old, nil
}

// DeleteFile removes the record and releases its size. lastRef reports
// whether no other record references the blob handle any more.
func (r *Registry) DeleteFile(ctx context.Context, fileID uuid.UUID) (*fileInfo.File, bool, error) {
	r.mu.Lock()
	f, ok := r.files[fileID]
	if !ok {
		r.mu.Unlock()
		return nil, false, fmt.Errorf("file %s: %w", fileID, errs.ErrNotFound)
	}
	delete(r.files, fileID)
	r.unindexLocked(f)
	r.refs[f.BlobHandle]--
	lastRef := r.refs[f.BlobHandle] <= 0
	if lastRef {
		delete(r.refs, f.BlobHandle)
	}
	r.mu.Unlock()

	if err := r.ledger.Release(ctx, f.OwnerID, f.Size); err != nil {
		return f, lastRef, fmt.Errorf("release %d bytes: %w", f.Size, err)
	}
	return f, lastRef, nil
}

func (r *Registry) Get(fileID uuid.UUID) (*fileInfo.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", fileID, errs.ErrNotFound)
	}
	return f.Clone(), nil
}

// InFolder lists the files of a folder in insertion order.
func (r *Registry) InFolder(folderID uuid.UUID) []*fileInfo.File {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byFolder[folderID]
	out := make([]*fileInfo.File, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.files[id].Clone())
	}
	return out
}

func (r *Registry) InFolders(folderIDs []uuid.UUID) []*fileInfo.File {
	var out []*fileInfo.File
	for _, id := range folderIDs {
		out = append(out, r.InFolder(id)...)
	}
	return out
}

// OwnedBytes sums the sizes of the files owned by accountID.
func (r *Registry) OwnedBytes(accountID uuid.UUID) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	for _, f := range r.files {
		if f.OwnerID == accountID {
			total += f.Size
		}
	}
	return total
}

// Refs returns how many records reference handle.
func (r *Registry) Refs(handle string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refs[handle]
}

// Restore loads persisted records without touching the ledger; the ledger
// is opened with the persisted usage instead.
func (r *Registry) Restore(files []fileInfo.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.files) > 0 {
		return errors.New("restore into a non-empty file registry")
	}
	for i := range files {
		f := files[i].Clone()
		owner, err := r.folders.Owner(f.FolderID)
		if err != nil {
			return fmt.Errorf("file %s: %w", f.ID, err)
		}
		if owner != f.OwnerID {
			return fmt.Errorf("file %s is filed in a folder of account %s", f.ID, owner)
		}
		r.insertLocked(f)
	}
	return nil
}

func (r *Registry) insertLocked(f *fileInfo.File) {
	r.files[f.ID] = f
	r.byFolder[f.FolderID] = append(r.byFolder[f.FolderID], f.ID)
	r.refs[f.BlobHandle]++
}

func (r *Registry) unindexLocked(f *fileInfo.File) {
	ids := r.byFolder[f.FolderID]
	if i := slices.Index(ids, f.ID); i >= 0 {
		ids = slices.Delete(ids, i, i+1)
	}
	if len(ids) == 0 {
		delete(r.byFolder, f.FolderID)
		return
	}
	r.byFolder[f.FolderID] = ids
}
