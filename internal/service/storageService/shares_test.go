package storageService

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drive-service/internal/blob/memBlob"
	"drive-service/internal/errs"
	"drive-service/internal/model/share"
)

func TestShare_Visibility(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, 0)
	alice := fx.register(t, "Alice")
	bob := fx.register(t, "Bob")
	f := fx.upload(t, alice.ID, nil, "report.pdf", 10)
	target := fileTarget(f.ID)

	_, _, err := fx.svc.Download(ctx, bob.ID, f.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = fx.svc.Share(ctx, alice.ID, target, bob.ID, share.PermissionView)
	require.NoError(t, err)
	assert.True(t, fx.svc.CanAccess(ctx, bob.ID, target, share.PermissionView))
	assert.False(t, fx.svc.CanAccess(ctx, bob.ID, target, share.PermissionEdit))

	rc, _, err := fx.svc.Download(ctx, bob.ID, f.ID)
	require.NoError(t, err)
	rc.Close()
	assert.ErrorIs(t, fx.svc.RenameFile(ctx, bob.ID, f.ID, "x"), errs.ErrForbidden)
	assert.ErrorIs(t, fx.svc.DeleteFile(ctx, bob.ID, f.ID), errs.ErrForbidden)

	require.NoError(t, fx.svc.Unshare(ctx, alice.ID, target, bob.ID))
	assert.False(t, fx.svc.CanAccess(ctx, bob.ID, target, share.PermissionView))
	assert.False(t, fx.svc.CanAccess(ctx, bob.ID, target, share.PermissionEdit))
	require.NoError(t, fx.svc.Unshare(ctx, alice.ID, target, bob.ID))
}

func TestShare_EditGrantAllowsRename(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, 0)
	alice := fx.register(t, "Alice")
	bob := fx.register(t, "Bob")
	docs, err := fx.svc.CreateFolder(ctx, alice.ID, "docs", nil)
	require.NoError(t, err)

	_, err = fx.svc.Share(ctx, alice.ID, folderTarget(docs.ID), bob.ID, share.PermissionEdit)
	require.NoError(t, err)
	require.NoError(t, fx.svc.RenameFolder(ctx, bob.ID, docs.ID, "shared-docs"))
	assert.ErrorIs(t, fx.svc.MoveFolder(ctx, bob.ID, docs.ID, bob.RootFolderID), errs.ErrForbidden)

	listing, err := fx.svc.Browse(ctx, bob.ID, &docs.ID, SortInsertion)
	require.NoError(t, err)
	assert.Equal(t, "shared-docs", listing.Folder.Name)
	assert.Equal(t, []string{"shared-docs"}, listing.Path)
}

func TestShare_Rules(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, 0)
	alice := fx.register(t, "Alice")
	bob := fx.register(t, "Bob")
	carol := fx.register(t, "Carol")
	f := fx.upload(t, alice.ID, nil, "a", 1)
	target := fileTarget(f.ID)

	_, err := fx.svc.Share(ctx, alice.ID, target, alice.ID, share.PermissionView)
	assert.ErrorIs(t, err, errs.ErrForbidden)

	_, err = fx.svc.Share(ctx, alice.ID, target, bob.ID, share.PermissionNone)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = fx.svc.Share(ctx, bob.ID, target, carol.ID, share.PermissionView)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = fx.svc.Share(ctx, alice.ID, target, bob.ID, share.PermissionView)
	require.NoError(t, err)
	_, err = fx.svc.Share(ctx, bob.ID, target, carol.ID, share.PermissionView)
	assert.ErrorIs(t, err, errs.ErrForbidden)

	assert.ErrorIs(t, fx.svc.Unshare(ctx, carol.ID, target, bob.ID), errs.ErrNotFound)
	require.NoError(t, fx.svc.Unshare(ctx, bob.ID, target, bob.ID))
	assert.False(t, fx.svc.CanAccess(ctx, bob.ID, target, share.PermissionView))
}

func TestUnshare_SelfWithoutGrantIsNotFound(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, 0)
	alice := fx.register(t, "Alice")
	mallory := fx.register(t, "Mallory")
	f := fx.upload(t, alice.ID, nil, "a", 1)

	assert.ErrorIs(t, fx.svc.Unshare(ctx, mallory.ID, fileTarget(f.ID), mallory.ID), errs.ErrNotFound)
	assert.ErrorIs(t, fx.svc.Unshare(ctx, mallory.ID, fileTarget(uuid.New()), mallory.ID), errs.ErrNotFound)
	assert.ErrorIs(t, fx.svc.Unshare(ctx, mallory.ID, folderTarget(alice.RootFolderID), mallory.ID), errs.ErrNotFound)
	require.NoError(t, fx.svc.Unshare(ctx, alice.ID, fileTarget(f.ID), alice.ID))
}

func TestShare_UpsertAndJournalFailure(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, 0)
	alice := fx.register(t, "Alice")
	bob := fx.register(t, "Bob")
	f := fx.upload(t, alice.ID, nil, "a", 1)
	target := fileTarget(f.ID)

	_, err := fx.svc.Share(ctx, alice.ID, target, bob.ID, share.PermissionView)
	require.NoError(t, err)

	fx.journal.setFailing(true)
	_, err = fx.svc.Share(ctx, alice.ID, target, bob.ID, share.PermissionEdit)
	require.Error(t, err)
	assert.True(t, fx.svc.CanAccess(ctx, bob.ID, target, share.PermissionView))
	assert.False(t, fx.svc.CanAccess(ctx, bob.ID, target, share.PermissionEdit))

	require.Error(t, fx.svc.Unshare(ctx, alice.ID, target, bob.ID))
	assert.True(t, fx.svc.CanAccess(ctx, bob.ID, target, share.PermissionView))

	fx.journal.setFailing(false)
	_, err = fx.svc.Share(ctx, alice.ID, target, bob.ID, share.PermissionEdit)
	require.NoError(t, err)
	grants, err := fx.svc.ListGrants(ctx, alice.ID, target)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, share.PermissionEdit, grants[0].Permission)

	_, err = fx.svc.ListGrants(ctx, bob.ID, target)
	assert.ErrorIs(t, err, errs.ErrForbidden)
}

func TestShare_FolderGrantIsNotInherited(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, 0)
	alice := fx.register(t, "Alice")
	bob := fx.register(t, "Bob")
	docs, err := fx.svc.CreateFolder(ctx, alice.ID, "docs", nil)
	require.NoError(t, err)
	f := fx.upload(t, alice.ID, &docs.ID, "inside", 1)

	_, err = fx.svc.Share(ctx, alice.ID, folderTarget(docs.ID), bob.ID, share.PermissionView)
	require.NoError(t, err)

	listing, err := fx.svc.Browse(ctx, bob.ID, &docs.ID, SortInsertion)
	require.NoError(t, err)
	assert.Len(t, listing.Files, 1)
	_, _, err = fx.svc.Download(ctx, bob.ID, f.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestShareByEmail(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	svc := New(Deps{Blobs: memBlob.New(), Notifier: notifier})
	alice, err := svc.RegisterAccount(ctx, "Alice", "alice@example.com")
	require.NoError(t, err)
	bob, err := svc.RegisterAccount(ctx, "Bob", "bob@example.com")
	require.NoError(t, err)
	docs, err := svc.CreateFolder(ctx, alice.ID, "docs", nil)
	require.NoError(t, err)
	target := folderTarget(docs.ID)

	g, err := svc.ShareByEmail(ctx, alice.ID, target, "BOB@example.com", share.PermissionView)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, g.GranteeID)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "bob@example.com: Alice shared a folder with you", notifier.sent[0])

	_, err = svc.ShareByEmail(ctx, alice.ID, target, "nobody@example.com", share.PermissionView)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	notifier.err = errors.New("smtp: connection refused")
	_, err = svc.ShareByEmail(ctx, alice.ID, target, "bob@example.com", share.PermissionEdit)
	require.ErrorIs(t, err, errs.ErrDependency)
	assert.True(t, svc.CanAccess(ctx, bob.ID, target, share.PermissionEdit))

	shared, err := svc.SharedWithMe(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, "docs", shared[0].Folder.Name)
	assert.Nil(t, shared[0].File)
}
