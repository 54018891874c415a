// Package storageRepo persists storage changesets in PostgreSQL and loads
// the full state back at start-up.
package storageRepo

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"drive-service/internal/model/account"
	"drive-service/internal/model/changeset"
	"drive-service/internal/model/fileInfo"
	"drive-service/internal/model/folder"
	"drive-service/internal/model/share"
)

//go:embed schema.sql
var schema string

// DB is satisfied by *pgxpool.Pool and *pgx.Conn.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type StorageRepo struct {
	db DB
}

func New(db DB) *StorageRepo {
	return &StorageRepo{db: db}
}

// Migrate creates the tables when they do not exist yet.
func (r *StorageRepo) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const (
	upsertAccount = `INSERT INTO accounts (id, display_name, email, bytes_used, quota_limit, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name, email = EXCLUDED.email,
		 quota_limit = EXCLUDED.quota_limit`
	upsertFolder = `INSERT INTO folders (id, owner_id, name, parent_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, parent_id = EXCLUDED.parent_id`
	upsertFile = `INSERT INTO files (id, owner_id, folder_id, name, blob_handle, size, checksum, content_type, created_at, modified_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET folder_id = EXCLUDED.folder_id, name = EXCLUDED.name,
		 modified_at = EXCLUDED.modified_at`
	upsertGrant = `INSERT INTO share_grants (target_kind, target_id, grantee_id, permission, granted_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (target_kind, target_id, grantee_id) DO UPDATE SET permission = EXCLUDED.permission,
		 granted_at = EXCLUDED.granted_at`
	deleteGrant  = `DELETE FROM share_grants WHERE target_kind = $1 AND target_id = $2 AND grantee_id = $3`
	deleteFile   = `DELETE FROM files WHERE id = $1`
	deleteFolder = `DELETE FROM folders WHERE id = $1`
	updateUsage  = `UPDATE accounts SET bytes_used = $2 WHERE id = $1`
)

// Commit writes cs in one transaction.
func (r *StorageRepo) Commit(ctx context.Context, cs *changeset.Changeset) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, a := range cs.Accounts {
		if _, err := tx.Exec(ctx, upsertAccount, a.ID, a.DisplayName, a.Email, a.BytesUsed, a.QuotaLimit, a.CreatedAt); err != nil {
			return fmt.Errorf("failed to save account %s: %w", a.ID, err)
		}
	}
	for _, f := range cs.Folders {
		if _, err := tx.Exec(ctx, upsertFolder, f.ID, f.OwnerID, f.Name, f.ParentID, f.CreatedAt); err != nil {
			return fmt.Errorf("failed to save folder %s: %w", f.ID, err)
		}
	}
	for _, f := range cs.Files {
		if _, err := tx.Exec(ctx, upsertFile, f.ID, f.OwnerID, f.FolderID, f.Name, f.BlobHandle,
			f.Size, f.Checksum, f.ContentType, f.CreatedAt, f.ModifiedAt); err != nil {
			return fmt.Errorf("failed to save file %s: %w", f.ID, err)
		}
	}
	for _, g := range cs.Grants {
		if _, err := tx.Exec(ctx, upsertGrant, string(g.Target.Kind), g.Target.ID, g.GranteeID, int16(g.Permission), g.GrantedAt); err != nil {
			return fmt.Errorf("failed to save grant on %s: %w", g.Target, err)
		}
	}
	for _, k := range cs.RevokedGrants {
		if _, err := tx.Exec(ctx, deleteGrant, string(k.Target.Kind), k.Target.ID, k.GranteeID); err != nil {
			return fmt.Errorf("failed to delete grant on %s: %w", k.Target, err)
		}
	}
	for _, id := range cs.DeletedFiles {
		if _, err := tx.Exec(ctx, deleteFile, id); err != nil {
			return fmt.Errorf("failed to delete file %s: %w", id, err)
		}
	}
	for _, id := range cs.DeletedFolders {
		if _, err := tx.Exec(ctx, deleteFolder, id); err != nil {
			return fmt.Errorf("failed to delete folder %s: %w", id, err)
		}
	}
	for id, used := range cs.Usage {
		if _, err := tx.Exec(ctx, updateUsage, id, used); err != nil {
			return fmt.Errorf("failed to update usage of %s: %w", id, err)
		}
	}

	return tx.Commit(ctx)
}

// Load reads every table. Folders and files come back in creation order.
func (r *StorageRepo) Load(ctx context.Context) (*changeset.Snapshot, error) {
	var snap changeset.Snapshot
	var err error

	snap.Accounts, err = collect(ctx, r.db,
		`SELECT id, display_name, email, bytes_used, quota_limit, created_at FROM accounts ORDER BY created_at, id`,
		func(row pgx.CollectableRow) (account.Account, error) {
			var a account.Account
			err := row.Scan(&a.ID, &a.DisplayName, &a.Email, &a.BytesUsed, &a.QuotaLimit, &a.CreatedAt)
			return a, err
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	snap.Folders, err = collect(ctx, r.db,
		`SELECT id, owner_id, name, parent_id, created_at FROM folders ORDER BY created_at, id`,
		func(row pgx.CollectableRow) (folder.Folder, error) {
			var f folder.Folder
			err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &f.ParentID, &f.CreatedAt)
			return f, err
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load folders: %w", err)
	}

	snap.Files, err = collect(ctx, r.db,
		`SELECT id, owner_id, folder_id, name, blob_handle, size, checksum, content_type, created_at, modified_at
		 FROM files ORDER BY created_at, id`,
		func(row pgx.CollectableRow) (fileInfo.File, error) {
			var f fileInfo.File
			err := row.Scan(&f.ID, &f.OwnerID, &f.FolderID, &f.Name, &f.BlobHandle,
				&f.Size, &f.Checksum, &f.ContentType, &f.CreatedAt, &f.ModifiedAt)
			return f, err
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load files: %w", err)
	}

	snap.Grants, err = collect(ctx, r.db,
		`SELECT target_kind, target_id, grantee_id, permission, granted_at FROM share_grants ORDER BY granted_at`,
		func(row pgx.CollectableRow) (share.Grant, error) {
			var (
				g    share.Grant
				kind string
				perm int16
			)
			if err := row.Scan(&kind, &g.Target.ID, &g.GranteeID, &perm, &g.GrantedAt); err != nil {
				return g, err
			}
			k, perr := share.ParseKind(kind)
			g.Target.Kind = k
			g.Permission = share.Permission(perm)
			return g, perr
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load grants: %w", err)
	}

	return &snap, nil
}

func collect[T any](ctx context.Context, db DB, query string, fn pgx.RowToFunc[T]) ([]T, error) {
	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, fn)
}
