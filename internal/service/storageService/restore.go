package storageService

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"drive-service/internal/model/changeset"
	"drive-service/pkg/logger"
)

// Restore rebuilds the service from a persisted snapshot. It must run before
// the service takes any traffic. Ledger entries are opened with the sum of
// each account's file sizes; a journal usage that disagrees is logged.
func (s *Service) Restore(ctx context.Context, snap *changeset.Snapshot) error {
	s.mu.Lock()
	populated := len(s.accounts) > 0
	s.mu.Unlock()
	if populated {
		return errors.New("restore into a service that already has accounts")
	}

	if err := s.tree.Restore(snap.Folders); err != nil {
		return fmt.Errorf("restore folders: %w", err)
	}
	if err := s.files.Restore(snap.Files); err != nil {
		return fmt.Errorf("restore files: %w", err)
	}
	if err := s.sharing.Restore(snap.Grants); err != nil {
		return fmt.Errorf("restore grants: %w", err)
	}

	log := logger.GetLogger(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range snap.Accounts {
		acct := snap.Accounts[i]
		root, err := s.tree.Root(acct.ID)
		if err != nil {
			return fmt.Errorf("account %s: %w", acct.ID, err)
		}
		acct.RootFolderID = root.ID
		used := s.files.OwnedBytes(acct.ID)
		if used != acct.BytesUsed {
			log.Warn("journal usage disagrees with file sizes",
				zap.Stringer("account_id", acct.ID),
				zap.Int64("journal_bytes", acct.BytesUsed),
				zap.Int64("file_bytes", used),
			)
		}
		acct.BytesUsed = used
		if err := s.ledger.Open(ctx, acct.ID, acct.QuotaLimit, used); err != nil {
			return fmt.Errorf("open quota for %s: %w", acct.ID, err)
		}
		s.accounts[acct.ID] = &acct
		s.byEmail[strings.ToLower(acct.Email)] = acct.ID
	}
	log.Info("storage restored",
		zap.Int("accounts", len(snap.Accounts)),
		zap.Int("folders", len(snap.Folders)),
		zap.Int("files", len(snap.Files)),
		zap.Int("grants", len(snap.Grants)),
	)
	return nil
}
