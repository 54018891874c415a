package storageService

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"drive-service/internal/errs"
	"drive-service/internal/model/changeset"
	"drive-service/internal/model/fileInfo"
	"drive-service/internal/model/folder"
	"drive-service/internal/model/share"
	"drive-service/pkg/logger"
)

// SharedItem is a grant held by the caller together with the node it
// points at.
type SharedItem struct {
	Grant  share.Grant
	File   *fileInfo.File
	Folder *folder.Folder
}

// Share grants granteeID access to a node owned by accountID. Sharing again
// replaces the previous permission.
func (s *Service) Share(ctx context.Context, accountID uuid.UUID, target share.Target, granteeID uuid.UUID, perm share.Permission) (*share.Grant, error) {
	owner, err := s.authorize(accountID, target, share.PermissionNone)
	if err != nil {
		return nil, err
	}
	if _, err := s.account(granteeID); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(owner)
	defer unlock()

	prev, g, err := s.sharing.Grant(target, granteeID, perm)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, &changeset.Changeset{Grants: []share.Grant{g}}); err != nil {
		if prev != nil {
			s.sharing.Put(*prev)
		} else {
			s.sharing.Revoke(target, granteeID)
		}
		return nil, err
	}
	logger.GetLogger(ctx).Info("shared",
		zap.Stringer("target", target),
		zap.Stringer("grantee_id", granteeID),
		zap.Stringer("permission", perm),
	)
	return &g, nil
}

// ShareByEmail shares with the account registered under email and notifies
// it. A notification failure is reported as a dependency error; the grant
// stays in place.
func (s *Service) ShareByEmail(ctx context.Context, accountID uuid.UUID, target share.Target, email string, perm share.Permission) (*share.Grant, error) {
	grantee, err := s.FindAccountByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	g, err := s.Share(ctx, accountID, target, grantee.ID, perm)
	if err != nil {
		return nil, err
	}

	sharer, err := s.account(accountID)
	if err != nil {
		return g, err
	}
	subject := fmt.Sprintf("%s shared a %s with you", sharer.DisplayName, target.Kind)
	body := fmt.Sprintf("%s gave you %s access to %q.", sharer.DisplayName, perm, s.targetName(target))
	if err := s.notifier.Notify(ctx, grantee.Email, subject, body); err != nil {
		return g, errs.Dependency("notify grantee", err)
	}
	return g, nil
}

func (s *Service) targetName(target share.Target) string {
	switch target.Kind {
	case share.KindFile:
		if f, err := s.files.Get(target.ID); err == nil {
			return f.Name
		}
	case share.KindFolder:
		if f, err := s.tree.Get(target.ID); err == nil {
			return f.Name
		}
	}
	return target.ID.String()
}

// Unshare removes the grant of target to granteeID. The owner may revoke
// any grant; a grantee may drop its own. Removing a missing grant succeeds.
func (s *Service) Unshare(ctx context.Context, accountID uuid.UUID, target share.Target, granteeID uuid.UUID) error {
	var owner uuid.UUID
	if accountID == granteeID {
		o, err := targetResolver{tree: s.tree, files: s.files}.TargetOwner(target)
		if err != nil {
			return err
		}
		if o != accountID && !s.sharing.CanAccess(accountID, target, share.PermissionView) {
			return fmt.Errorf("%s: %w", target, errs.ErrNotFound)
		}
		owner = o
	} else {
		o, err := s.authorize(accountID, target, share.PermissionNone)
		if err != nil {
			return err
		}
		owner = o
	}
	unlock := s.locks.Lock(owner)
	defer unlock()

	prev := s.sharing.Revoke(target, granteeID)
	if prev == nil {
		return nil
	}
	if err := s.commit(ctx, &changeset.Changeset{RevokedGrants: []share.Key{prev.Key()}}); err != nil {
		s.sharing.Put(*prev)
		return err
	}
	return nil
}

// ListGrants is visible to the owner of target only.
func (s *Service) ListGrants(ctx context.Context, accountID uuid.UUID, target share.Target) ([]share.Grant, error) {
	if _, err := s.authorize(accountID, target, share.PermissionNone); err != nil {
		return nil, err
	}
	return s.sharing.ListGrants(target)
}

func (s *Service) SharedWithMe(ctx context.Context, accountID uuid.UUID) ([]SharedItem, error) {
	if _, err := s.account(accountID); err != nil {
		return nil, err
	}
	grants := s.sharing.SharedWith(accountID)
	out := make([]SharedItem, 0, len(grants))
	for _, g := range grants {
		item := SharedItem{Grant: g}
		switch g.Target.Kind {
		case share.KindFile:
			f, err := s.files.Get(g.Target.ID)
			if err != nil {
				continue
			}
			item.File = f
		case share.KindFolder:
			f, err := s.tree.Get(g.Target.ID)
			if err != nil {
				continue
			}
			item.Folder = f
		}
		out = append(out, item)
	}
	return out, nil
}

// CanAccess reports whether accountID owns target or holds a grant of at
// least required.
func (s *Service) CanAccess(ctx context.Context, accountID uuid.UUID, target share.Target, required share.Permission) bool {
	if required == share.PermissionNone {
		required = share.PermissionView
	}
	return s.sharing.CanAccess(accountID, target, required)
}
