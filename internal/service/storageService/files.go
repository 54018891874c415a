package storageService

import (
	"context"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"drive-service/internal/errs"
	"drive-service/internal/model/changeset"
	"drive-service/internal/model/fileInfo"
	"drive-service/internal/model/share"
	"drive-service/internal/service/fileRegistry"
	"drive-service/internal/service/folderTree"
	"drive-service/pkg/logger"
)

type UploadRequest struct {
	// FolderID defaults to the account root.
	FolderID    *uuid.UUID
	Name        string
	ContentType string
	Content     io.Reader
	Size        int64
}

func fileTarget(id uuid.UUID) share.Target {
	return share.Target{Kind: share.KindFile, ID: id}
}

// countingReader counts and hashes everything read through it.
type countingReader struct {
	r io.Reader
	h hash.Hash
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	c.h.Write(p[:n])
	return n, err
}

// Upload writes the content to the blob store outside any lock, then
// registers the record, which reserves quota. Any failure after the blob
// write discards the blob.
func (s *Service) Upload(ctx context.Context, accountID uuid.UUID, req UploadRequest) (*fileInfo.File, error) {
	if err := folderTree.ValidateName(req.Name); err != nil {
		return nil, err
	}
	if req.Size < 0 || req.Content == nil {
		return nil, fmt.Errorf("upload content: %w", errs.ErrInvalidArgument)
	}
	folderID, err := s.ownFolder(accountID, req.FolderID)
	if err != nil {
		return nil, err
	}

	// Advisory only; the reservation below is authoritative.
	usage, err := s.ledger.Usage(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if req.Size > usage.Available() {
		return nil, fmt.Errorf("upload of %d bytes with %d available: %w", req.Size, usage.Available(), errs.ErrQuotaExceeded)
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	body := &countingReader{r: req.Content, h: h}
	handle, err := s.blobs.Put(ctx, body, req.Size, req.ContentType)
	if err != nil {
		return nil, errs.Dependency("blob put", err)
	}
	// A longer stream than declared shows up as one extra byte.
	_, _ = io.CopyN(io.Discard, body, 1)
	if body.n != req.Size {
		s.discardBlob(ctx, handle)
		return nil, fmt.Errorf("declared size %d, received at least %d bytes: %w", req.Size, body.n, errs.ErrInvalidArgument)
	}

	f, err := s.registerUpload(ctx, fileRegistry.NewFile{
		OwnerID:     accountID,
		FolderID:    folderID,
		Name:        req.Name,
		BlobHandle:  handle,
		Size:        req.Size,
		Checksum:    hex.EncodeToString(h.Sum(nil)),
		ContentType: req.ContentType,
	})
	if err != nil {
		s.discardBlob(ctx, handle)
		return nil, err
	}
	logger.GetLogger(ctx).Info("file uploaded",
		zap.Stringer("account_id", accountID),
		zap.Stringer("file_id", f.ID),
		zap.Int64("size", f.Size),
	)
	return f, nil
}

func (s *Service) registerUpload(ctx context.Context, in fileRegistry.NewFile) (*fileInfo.File, error) {
	unlock := s.locks.Lock(in.OwnerID)
	defer unlock()

	f, err := s.files.CreateFile(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.commitNewFile(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// commitNewFile journals a freshly created record, removing it again when
// the commit fails.
func (s *Service) commitNewFile(ctx context.Context, f *fileInfo.File) error {
	cs := &changeset.Changeset{Files: []fileInfo.File{*f}}
	err := s.recordUsage(ctx, cs, f.OwnerID)
	if err == nil {
		err = s.commit(ctx, cs)
	}
	if err != nil {
		_, _, _ = s.files.DeleteFile(ctx, f.ID)
		return err
	}
	return nil
}

// ownFolder resolves folderID, or the account root when nil, and checks it
// belongs to accountID.
func (s *Service) ownFolder(accountID uuid.UUID, folderID *uuid.UUID) (uuid.UUID, error) {
	if _, err := s.account(accountID); err != nil {
		return uuid.Nil, err
	}
	if folderID == nil {
		root, err := s.tree.Root(accountID)
		if err != nil {
			return uuid.Nil, err
		}
		return root.ID, nil
	}
	owner, err := s.tree.Owner(*folderID)
	if err != nil {
		return uuid.Nil, err
	}
	if owner != accountID {
		return uuid.Nil, fmt.Errorf("folder %s: %w", *folderID, errs.ErrNotFound)
	}
	return *folderID, nil
}

// Download opens a file's content for its owner or a view grantee.
func (s *Service) Download(ctx context.Context, accountID, fileID uuid.UUID) (io.ReadCloser, *fileInfo.File, error) {
	if _, err := s.authorize(accountID, fileTarget(fileID), share.PermissionView); err != nil {
		return nil, nil, err
	}
	f, err := s.files.Get(fileID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Open(ctx, f.BlobHandle)
	if err != nil {
		return nil, nil, errs.Dependency("blob open", err)
	}
	return rc, f, nil
}

func (s *Service) GetFile(ctx context.Context, accountID, fileID uuid.UUID) (*fileInfo.File, error) {
	if _, err := s.authorize(accountID, fileTarget(fileID), share.PermissionView); err != nil {
		return nil, err
	}
	return s.files.Get(fileID)
}

// RenameFile is allowed to the owner and to edit grantees.
func (s *Service) RenameFile(ctx context.Context, accountID, fileID uuid.UUID, name string) error {
	owner, err := s.authorize(accountID, fileTarget(fileID), share.PermissionEdit)
	if err != nil {
		return err
	}
	unlock := s.locks.Lock(owner)
	defer unlock()

	old, err := s.files.RenameFile(fileID, name)
	if err != nil {
		return err
	}
	if err := s.commitFile(ctx, fileID); err != nil {
		_, _ = s.files.RenameFile(fileID, old)
		return err
	}
	return nil
}

func (s *Service) MoveFile(ctx context.Context, accountID, fileID, folderID uuid.UUID) error {
	owner, err := s.authorize(accountID, fileTarget(fileID), share.PermissionNone)
	if err != nil {
		return err
	}
	unlock := s.locks.Lock(owner)
	defer unlock()

	old, err := s.files.MoveFile(fileID, folderID)
	if err != nil {
		return err
	}
	if err := s.commitFile(ctx, fileID); err != nil {
		_, _ = s.files.MoveFile(fileID, old)
		return err
	}
	return nil
}

func (s *Service) commitFile(ctx context.Context, fileID uuid.UUID) error {
	f, err := s.files.Get(fileID)
	if err != nil {
		return err
	}
	return s.commit(ctx, &changeset.Changeset{Files: []fileInfo.File{*f}})
}

// CopyFile duplicates the record into destFolderID. The copy shares the blob
// and is charged again to the owner.
func (s *Service) CopyFile(ctx context.Context, accountID, fileID, destFolderID uuid.UUID) (*fileInfo.File, error) {
	owner, err := s.authorize(accountID, fileTarget(fileID), share.PermissionNone)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(owner)
	defer unlock()

	cp, err := s.files.CopyFile(ctx, fileID, destFolderID)
	if err != nil {
		return nil, err
	}
	if err := s.commitNewFile(ctx, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// DeleteFile removes the record and releases its quota. The blob is deleted
// best-effort once no record references it.
func (s *Service) DeleteFile(ctx context.Context, accountID, fileID uuid.UUID) error {
	owner, err := s.authorize(accountID, fileTarget(fileID), share.PermissionNone)
	if err != nil {
		return err
	}
	handle, err := s.deleteFileLocked(ctx, owner, fileID)
	if handle != "" {
		s.discardBlob(ctx, handle)
	}
	return err
}

func (s *Service) deleteFileLocked(ctx context.Context, owner, fileID uuid.UUID) (string, error) {
	unlock := s.locks.Lock(owner)
	defer unlock()

	f, err := s.files.Get(fileID)
	if err != nil {
		return "", err
	}
	usage, err := s.ledger.Usage(ctx, owner)
	if err != nil {
		return "", err
	}
	cs := &changeset.Changeset{DeletedFiles: []uuid.UUID{fileID}}
	for _, g := range s.sharing.Grants(fileTarget(fileID)) {
		cs.RevokedGrants = append(cs.RevokedGrants, g.Key())
	}
	committed := max(usage.BytesUsed-f.Size, 0)
	cs.SetUsage(owner, committed)
	if err := s.commit(ctx, cs); err != nil {
		return "", err
	}

	rec, lastRef, err := s.files.DeleteFile(ctx, fileID)
	s.sharing.DropTarget(fileTarget(fileID))
	if rec == nil {
		return "", err
	}
	if err != nil {
		err = s.reconcileUsage(ctx, owner, committed, err)
	}
	logger.GetLogger(ctx).Info("file deleted",
		zap.Stringer("file_id", fileID),
		zap.Int64("size", rec.Size),
	)
	if lastRef {
		return rec.BlobHandle, err
	}
	return "", err
}
