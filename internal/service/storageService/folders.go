package storageService

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"drive-service/internal/errs"
	"drive-service/internal/model/changeset"
	"drive-service/internal/model/fileInfo"
	"drive-service/internal/model/folder"
	"drive-service/internal/model/share"
	"drive-service/pkg/logger"
)

type SortOrder int

const (
	SortInsertion SortOrder = iota
	SortByName
	SortByDate
)

func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(s) {
	case "", "insertion":
		return SortInsertion, nil
	case "name":
		return SortByName, nil
	case "date":
		return SortByDate, nil
	}
	return SortInsertion, fmt.Errorf("sort order %q: %w", s, errs.ErrInvalidArgument)
}

type Listing struct {
	Folder  *folder.Folder
	Path    []string
	Folders []*folder.Folder
	Files   []*fileInfo.File
}

func folderTarget(id uuid.UUID) share.Target {
	return share.Target{Kind: share.KindFolder, ID: id}
}

func (s *Service) CreateFolder(ctx context.Context, accountID uuid.UUID, name string, parentID *uuid.UUID) (*folder.Folder, error) {
	if _, err := s.account(accountID); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(accountID)
	defer unlock()

	f, err := s.tree.CreateFolder(accountID, name, parentID)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, &changeset.Changeset{Folders: []folder.Folder{*f}}); err != nil {
		_, _ = s.tree.DeleteFolder(f.ID)
		return nil, err
	}
	logger.GetLogger(ctx).Info("folder created",
		zap.Stringer("account_id", accountID),
		zap.Stringer("folder_id", f.ID),
	)
	return f, nil
}

// RenameFolder is allowed to the owner and to edit grantees.
func (s *Service) RenameFolder(ctx context.Context, accountID, folderID uuid.UUID, name string) error {
	owner, err := s.authorize(accountID, folderTarget(folderID), share.PermissionEdit)
	if err != nil {
		return err
	}
	unlock := s.locks.Lock(owner)
	defer unlock()

	old, err := s.tree.RenameFolder(folderID, name)
	if err != nil {
		return err
	}
	f, err := s.tree.Get(folderID)
	if err != nil {
		return err
	}
	if err := s.commit(ctx, &changeset.Changeset{Folders: []folder.Folder{*f}}); err != nil {
		_, _ = s.tree.RenameFolder(folderID, old)
		return err
	}
	return nil
}

func (s *Service) MoveFolder(ctx context.Context, accountID, folderID, newParentID uuid.UUID) error {
	owner, err := s.authorize(accountID, folderTarget(folderID), share.PermissionNone)
	if err != nil {
		return err
	}
	unlock := s.locks.Lock(owner)
	defer unlock()

	before, err := s.tree.Get(folderID)
	if err != nil {
		return err
	}
	if err := s.tree.MoveFolder(folderID, newParentID); err != nil {
		return err
	}
	after, err := s.tree.Get(folderID)
	if err != nil {
		return err
	}
	if err := s.commit(ctx, &changeset.Changeset{Folders: []folder.Folder{*after}}); err != nil {
		_ = s.tree.MoveFolder(folderID, *before.ParentID)
		return err
	}
	logger.GetLogger(ctx).Info("folder moved",
		zap.Stringer("folder_id", folderID),
		zap.Stringer("parent_id", newParentID),
	)
	return nil
}

// DeleteFolder removes the folder, every descendant folder and every file
// they contain, releasing the files' sizes from the owner's quota. Grants on
// removed nodes are dropped. The account root can never be deleted.
func (s *Service) DeleteFolder(ctx context.Context, accountID, folderID uuid.UUID) error {
	f, err := s.tree.Get(folderID)
	if err != nil {
		return err
	}
	if f.IsRoot() {
		return fmt.Errorf("root folder cannot be deleted: %w", errs.ErrForbidden)
	}
	owner, err := s.authorize(accountID, folderTarget(folderID), share.PermissionNone)
	if err != nil {
		return err
	}

	orphans, err := s.deleteFolderLocked(ctx, owner, folderID)
	for _, handle := range orphans {
		s.discardBlob(ctx, handle)
	}
	return err
}

// deleteFolderLocked runs the cascade under the owner's lock and returns the
// blob handles no record references any more.
func (s *Service) deleteFolderLocked(ctx context.Context, owner, folderID uuid.UUID) ([]string, error) {
	unlock := s.locks.Lock(owner)
	defer unlock()

	folders, err := s.tree.Subtree(folderID)
	if err != nil {
		return nil, err
	}
	files := s.files.InFolders(folders)

	usage, err := s.ledger.Usage(ctx, owner)
	if err != nil {
		return nil, err
	}
	cs := &changeset.Changeset{DeletedFolders: folders}
	var freed int64
	for _, f := range files {
		freed += f.Size
		cs.DeletedFiles = append(cs.DeletedFiles, f.ID)
		for _, g := range s.sharing.Grants(fileTarget(f.ID)) {
			cs.RevokedGrants = append(cs.RevokedGrants, g.Key())
		}
	}
	for _, id := range folders {
		for _, g := range s.sharing.Grants(folderTarget(id)) {
			cs.RevokedGrants = append(cs.RevokedGrants, g.Key())
		}
	}
	committed := max(usage.BytesUsed-freed, 0)
	cs.SetUsage(owner, committed)
	if err := s.commit(ctx, cs); err != nil {
		return nil, err
	}

	log := logger.GetLogger(ctx)
	var orphans []string
	var releaseErr error
	for _, f := range files {
		rec, lastRef, err := s.files.DeleteFile(ctx, f.ID)
		if rec == nil {
			log.Error("cascade file delete", zap.Stringer("file_id", f.ID), zap.Error(err))
			continue
		}
		if err != nil {
			releaseErr = err
		}
		s.sharing.DropTarget(fileTarget(f.ID))
		if lastRef {
			orphans = append(orphans, rec.BlobHandle)
		}
	}
	for _, id := range folders {
		s.sharing.DropTarget(folderTarget(id))
	}
	if _, err := s.tree.DeleteFolder(folderID); err != nil {
		return orphans, err
	}
	if releaseErr != nil {
		if err := s.reconcileUsage(ctx, owner, committed, releaseErr); err != nil {
			return orphans, err
		}
	}

	log.Info("folder deleted",
		zap.Stringer("folder_id", folderID),
		zap.Int("folders", len(folders)),
		zap.Int("files", len(files)),
		zap.Int64("bytes_freed", freed),
	)
	return orphans, nil
}

// Browse lists a folder; nil folderID means the caller's root. The owner and
// view grantees of the folder may browse it.
func (s *Service) Browse(ctx context.Context, accountID uuid.UUID, folderID *uuid.UUID, order SortOrder) (*Listing, error) {
	if folderID == nil {
		root, err := s.tree.Root(accountID)
		if err != nil {
			return nil, err
		}
		folderID = &root.ID
	}
	if _, err := s.authorize(accountID, folderTarget(*folderID), share.PermissionView); err != nil {
		return nil, err
	}

	f, err := s.tree.Get(*folderID)
	if err != nil {
		return nil, err
	}
	path, err := s.tree.Path(*folderID)
	if err != nil {
		return nil, err
	}
	children, err := s.tree.ListChildren(*folderID)
	if err != nil {
		return nil, err
	}
	files := s.files.InFolder(*folderID)

	switch order {
	case SortByName:
		slices.SortStableFunc(children, func(a, b *folder.Folder) int { return cmp.Compare(a.Name, b.Name) })
		slices.SortStableFunc(files, func(a, b *fileInfo.File) int { return cmp.Compare(a.Name, b.Name) })
	case SortByDate:
		slices.SortStableFunc(children, func(a, b *folder.Folder) int { return a.CreatedAt.Compare(b.CreatedAt) })
		slices.SortStableFunc(files, func(a, b *fileInfo.File) int { return a.ModifiedAt.Compare(b.ModifiedAt) })
	}

	return &Listing{Folder: f, Path: path, Folders: children, Files: files}, nil
}
