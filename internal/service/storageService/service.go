// Package storageService is the single entry point of the storage core. It
// composes the folder tree, file registry, quota ledger and sharing
// directory, and is the only place where an operation touches more than one
// of them.
//
// Every mutation runs under the lock of the account that owns the target.
// In-memory changes are applied under that lock and then committed to the
// journal as one changeset; when the commit fails they are undone before the
// lock is released. Deletes are planned, committed, then applied. Blob I/O
// never happens while an account lock is held.
package storageService

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"drive-service/internal/errs"
	"drive-service/internal/model/account"
	"drive-service/internal/model/changeset"
	"drive-service/internal/model/share"
	"drive-service/internal/service/fileRegistry"
	"drive-service/internal/service/folderTree"
	"drive-service/internal/service/quotaLedger"
	"drive-service/internal/service/sharing"
	"drive-service/pkg/logger"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

const maxDisplayName = 255

type BlobStore interface {
	Put(ctx context.Context, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
	Delete(ctx context.Context, handle string) error
}

type Notifier interface {
	Notify(ctx context.Context, to, subject, body string) error
}

// Journal persists committed changesets.
type Journal interface {
	Commit(ctx context.Context, cs *changeset.Changeset) error
}

type Deps struct {
	Blobs    BlobStore
	Ledger   quotaLedger.Ledger
	Journal  Journal
	Notifier Notifier
	// MaxDepth bounds folder nesting; zero means folderTree.DefaultMaxDepth.
	MaxDepth int
	// DefaultQuota is given to new accounts; zero means account.DefaultQuotaLimit.
	DefaultQuota int64
}

type Service struct {
	tree    *folderTree.Tree
	files   *fileRegistry.Registry
	ledger  quotaLedger.Ledger
	sharing *sharing.Directory

	blobs    BlobStore
	journal  Journal
	notifier Notifier
	locks    *accountLocks

	defaultQuota int64

	regMu    sync.Mutex
	mu       sync.RWMutex
	accounts map[uuid.UUID]*account.Account
	byEmail  map[string]uuid.UUID
	now      func() time.Time
}

func New(deps Deps) *Service {
	if deps.Ledger == nil {
		deps.Ledger = quotaLedger.NewMemory()
	}
	if deps.Journal == nil {
		deps.Journal = nopJournal{}
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.DefaultQuota <= 0 {
		deps.DefaultQuota = account.DefaultQuotaLimit
	}

	tree := folderTree.New(deps.MaxDepth)
	files := fileRegistry.New(tree, deps.Ledger)
	s := &Service{
		tree:         tree,
		files:        files,
		ledger:       deps.Ledger,
		blobs:        deps.Blobs,
		journal:      deps.Journal,
		notifier:     deps.Notifier,
		locks:        newAccountLocks(),
		defaultQuota: deps.DefaultQuota,
		accounts:     make(map[uuid.UUID]*account.Account),
		byEmail:      make(map[string]uuid.UUID),
		now:          time.Now,
	}
	s.sharing = sharing.New(targetResolver{tree: tree, files: files})
	return s
}

type nopJournal struct{}

func (nopJournal) Commit(context.Context, *changeset.Changeset) error { return nil }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string, string) error { return nil }

// targetResolver answers the sharing directory's owner lookups from the tree
// and the registry.
type targetResolver struct {
	tree  *folderTree.Tree
	files *fileRegistry.Registry
}

func (r targetResolver) TargetOwner(target share.Target) (uuid.UUID, error) {
	switch target.Kind {
	case share.KindFolder:
		return r.tree.Owner(target.ID)
	case share.KindFile:
		f, err := r.files.Get(target.ID)
		if err != nil {
			return uuid.Nil, err
		}
		return f.OwnerID, nil
	}
	return uuid.Nil, fmt.Errorf("target kind %q: %w", target.Kind, errs.ErrInvalidArgument)
}

// RegisterAccount creates an account, its root folder and its ledger entry.
func (s *Service) RegisterAccount(ctx context.Context, displayName, email string) (*account.Account, error) {
	displayName = strings.TrimSpace(displayName)
	email = strings.ToLower(strings.TrimSpace(email))
	if displayName == "" || len(displayName) > maxDisplayName {
		return nil, fmt.Errorf("display name: %w", errs.ErrInvalidArgument)
	}
	if !emailRegex.MatchString(email) {
		return nil, fmt.Errorf("invalid email format: %w", errs.ErrInvalidArgument)
	}

	s.regMu.Lock()
	defer s.regMu.Unlock()

	s.mu.RLock()
	_, taken := s.byEmail[email]
	s.mu.RUnlock()
	if taken {
		return nil, fmt.Errorf("email already registered: %w", errs.ErrConflict)
	}

	id := uuid.New()
	root, err := s.tree.CreateRoot(id)
	if err != nil {
		return nil, err
	}
	acct := &account.Account{
		ID:           id,
		DisplayName:  displayName,
		Email:        email,
		RootFolderID: root.ID,
		QuotaLimit:   s.defaultQuota,
		CreatedAt:    s.now(),
	}
	if err := s.ledger.Open(ctx, id, acct.QuotaLimit, 0); err != nil {
		s.tree.RemoveRoot(id)
		return nil, fmt.Errorf("open quota: %w", err)
	}

	cs := &changeset.Changeset{Accounts: []account.Account{*acct}}
	cs.Folders = append(cs.Folders, *root)
	cs.SetUsage(id, 0)
	if err := s.commit(ctx, cs); err != nil {
		_ = s.ledger.Close(ctx, id)
		s.tree.RemoveRoot(id)
		return nil, err
	}

	s.mu.Lock()
	s.accounts[id] = acct
	s.byEmail[email] = id
	s.mu.Unlock()

	logger.GetLogger(ctx).Info("account registered", zap.Stringer("account_id", id))
	out := *acct
	return &out, nil
}

// GetAccount returns the account with its current ledger usage.
func (s *Service) GetAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error) {
	acct, err := s.account(accountID)
	if err != nil {
		return nil, err
	}
	u, err := s.ledger.Usage(ctx, accountID)
	if err != nil {
		return nil, err
	}
	acct.BytesUsed = u.BytesUsed
	acct.QuotaLimit = u.QuotaLimit
	return acct, nil
}

func (s *Service) FindAccountByEmail(ctx context.Context, email string) (*account.Account, error) {
	s.mu.RLock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("account with email %q: %w", email, errs.ErrNotFound)
	}
	return s.GetAccount(ctx, id)
}

func (s *Service) UpdateProfile(ctx context.Context, accountID uuid.UUID, displayName string) error {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" || len(displayName) > maxDisplayName {
		return fmt.Errorf("display name: %w", errs.ErrInvalidArgument)
	}
	unlock := s.locks.Lock(accountID)
	defer unlock()

	acct, err := s.account(accountID)
	if err != nil {
		return err
	}
	acct.DisplayName = displayName
	if err := s.commit(ctx, &changeset.Changeset{Accounts: []account.Account{*acct}}); err != nil {
		return err
	}
	s.mu.Lock()
	s.accounts[accountID].DisplayName = displayName
	s.mu.Unlock()
	return nil
}

func (s *Service) Usage(ctx context.Context, accountID uuid.UUID) (quotaLedger.Usage, error) {
	if _, err := s.account(accountID); err != nil {
		return quotaLedger.Usage{}, err
	}
	return s.ledger.Usage(ctx, accountID)
}

// SetQuota changes an account's limit. Lowering it below the current usage
// is allowed; further uploads then fail until enough is deleted.
func (s *Service) SetQuota(ctx context.Context, accountID uuid.UUID, limit int64) error {
	if limit < 0 {
		return fmt.Errorf("negative quota %d: %w", limit, errs.ErrInvalidArgument)
	}
	unlock := s.locks.Lock(accountID)
	defer unlock()

	acct, err := s.account(accountID)
	if err != nil {
		return err
	}
	prev, err := s.ledger.Usage(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.ledger.SetLimit(ctx, accountID, limit); err != nil {
		return err
	}
	acct.QuotaLimit = limit
	if err := s.commit(ctx, &changeset.Changeset{Accounts: []account.Account{*acct}}); err != nil {
		_ = s.ledger.SetLimit(ctx, accountID, prev.QuotaLimit)
		return err
	}
	s.mu.Lock()
	s.accounts[accountID].QuotaLimit = limit
	s.mu.Unlock()
	return nil
}

func (s *Service) account(accountID uuid.UUID) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, errs.ErrNotFound)
	}
	out := *acct
	return &out, nil
}

func (s *Service) commit(ctx context.Context, cs *changeset.Changeset) error {
	if cs.Empty() {
		return nil
	}
	if err := s.journal.Commit(ctx, cs); err != nil {
		return fmt.Errorf("commit changeset: %w", err)
	}
	return nil
}

// recordUsage copies the ledger's usage for accountID into cs.
func (s *Service) recordUsage(ctx context.Context, cs *changeset.Changeset, accountID uuid.UUID) error {
	u, err := s.ledger.Usage(ctx, accountID)
	if err != nil {
		return err
	}
	cs.SetUsage(accountID, u.BytesUsed)
	return nil
}

// reconcileUsage resets the ledger to the usage the journal holds for
// accountID after a release failed past the commit. Callers hold the
// account lock.
func (s *Service) reconcileUsage(ctx context.Context, accountID uuid.UUID, committed int64, cause error) error {
	log := logger.GetLogger(ctx).With(zap.Stringer("account_id", accountID), zap.Int64("bytes_used", committed))
	u, err := s.ledger.Usage(ctx, accountID)
	if err == nil {
		err = s.ledger.Open(ctx, accountID, u.QuotaLimit, committed)
	}
	if err != nil {
		log.Error("quota reconcile failed", zap.NamedError("release_error", cause), zap.Error(err))
		return fmt.Errorf("reconcile usage: %w", err)
	}
	log.Warn("quota release failed; ledger reconciled", zap.Error(cause))
	return nil
}

// authorize resolves the owner of target and checks that accountID may act
// on it. With PermissionNone only the owner passes. Callers without any
// grant get ErrNotFound so existence does not leak across accounts.
func (s *Service) authorize(accountID uuid.UUID, target share.Target, required share.Permission) (uuid.UUID, error) {
	owner, err := targetResolver{tree: s.tree, files: s.files}.TargetOwner(target)
	if err != nil {
		return uuid.Nil, err
	}
	if owner == accountID {
		return owner, nil
	}
	if required != share.PermissionNone && s.sharing.CanAccess(accountID, target, required) {
		return owner, nil
	}
	if s.sharing.CanAccess(accountID, target, share.PermissionView) {
		return uuid.Nil, fmt.Errorf("%s: %w", target, errs.ErrForbidden)
	}
	return uuid.Nil, fmt.Errorf("%s: %w", target, errs.ErrNotFound)
}

// discardBlob deletes a blob best-effort. Failures are logged only.
func (s *Service) discardBlob(ctx context.Context, handle string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), handle); err != nil {
		logger.GetLogger(ctx).Warn("blob delete failed",
			zap.String("blob_handle", handle),
			zap.Error(err),
		)
	}
}
