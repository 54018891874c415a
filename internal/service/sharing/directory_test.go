package sharing_test

import (
	"fmt"
	"testing"

	"drive-service/internal/errs"
	"drive-service/internal/model/share"
	"drive-service/internal/service/sharing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type owners map[share.Target]uuid.UUID

func (o owners) TargetOwner(target share.Target) (uuid.UUID, error) {
	owner, ok := o[target]
	if !ok {
		return uuid.Nil, fmt.Errorf("%s: %w", target, errs.ErrNotFound)
	}
	return owner, nil
}

func setup() (owners, *sharing.Directory, uuid.UUID, share.Target) {
	alice := uuid.New()
	file := share.Target{Kind: share.KindFile, ID: uuid.New()}
	o := owners{file: alice}
	return o, sharing.New(o), alice, file
}

func TestShareVisibility(t *testing.T) {
	_, dir, alice, file := setup()
	bob := uuid.New()

	_, _, err := dir.Grant(file, bob, share.PermissionView)
	require.NoError(t, err)
	assert.True(t, dir.CanAccess(bob, file, share.PermissionView))
	assert.False(t, dir.CanAccess(bob, file, share.PermissionEdit))

	assert.True(t, dir.CanAccess(alice, file, share.PermissionEdit))

	prev := dir.Revoke(file, bob)
	require.NotNil(t, prev)
	assert.Equal(t, share.PermissionView, prev.Permission)
	assert.False(t, dir.CanAccess(bob, file, share.PermissionView))
	assert.False(t, dir.CanAccess(bob, file, share.PermissionEdit))

	// Idempotent.
	assert.Nil(t, dir.Revoke(file, bob))
}

func TestGrant_Upsert(t *testing.T) {
	_, dir, _, file := setup()
	bob := uuid.New()

	prev, _, err := dir.Grant(file, bob, share.PermissionView)
	require.NoError(t, err)
	assert.Nil(t, prev)

	prev, g, err := dir.Grant(file, bob, share.PermissionEdit)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, share.PermissionView, prev.Permission)
	assert.Equal(t, share.PermissionEdit, g.Permission)

	grants, err := dir.ListGrants(file)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, share.PermissionEdit, grants[0].Permission)
	assert.True(t, dir.CanAccess(bob, file, share.PermissionEdit))
}

func TestGrant_Errors(t *testing.T) {
	_, dir, alice, file := setup()

	_, _, err := dir.Grant(file, alice, share.PermissionView)
	assert.ErrorIs(t, err, errs.ErrForbidden)

	missing := share.Target{Kind: share.KindFolder, ID: uuid.New()}
	_, _, err = dir.Grant(missing, uuid.New(), share.PermissionView)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, _, err = dir.Grant(file, uuid.New(), share.PermissionNone)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = dir.ListGrants(missing)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.False(t, dir.CanAccess(alice, missing, share.PermissionView))
}

func TestFolderGrantDoesNotCoverFiles(t *testing.T) {
	o, dir, alice, file := setup()
	folderTarget := share.Target{Kind: share.KindFolder, ID: uuid.New()}
	o[folderTarget] = alice
	bob := uuid.New()

	_, _, err := dir.Grant(folderTarget, bob, share.PermissionEdit)
	require.NoError(t, err)
	assert.True(t, dir.CanAccess(bob, folderTarget, share.PermissionView))
	assert.False(t, dir.CanAccess(bob, file, share.PermissionView))
}

func TestSharedWithAndDropTarget(t *testing.T) {
	o, dir, alice, file := setup()
	other := share.Target{Kind: share.KindFile, ID: uuid.New()}
	o[other] = alice
	bob, carol := uuid.New(), uuid.New()

	_, _, _ = dir.Grant(file, bob, share.PermissionView)
	_, _, _ = dir.Grant(other, bob, share.PermissionEdit)
	_, _, _ = dir.Grant(file, carol, share.PermissionView)

	assert.Len(t, dir.SharedWith(bob), 2)
	assert.Len(t, dir.SharedWith(carol), 1)

	dropped := dir.DropTarget(file)
	assert.Len(t, dropped, 2)
	assert.Empty(t, dir.Grants(file))
	assert.Empty(t, dir.SharedWith(carol))
	require.Len(t, dir.SharedWith(bob), 1)
	assert.Equal(t, other, dir.SharedWith(bob)[0].Target)

	for _, g := range dropped {
		dir.Put(g)
	}
	assert.Len(t, dir.Grants(file), 2)
}

func TestRestore(t *testing.T) {
	_, dir, _, file := setup()
	bob := uuid.New()
	grants := []share.Grant{{Target: file, GranteeID: bob, Permission: share.PermissionEdit}}

	require.NoError(t, dir.Restore(grants))
	assert.True(t, dir.CanAccess(bob, file, share.PermissionEdit))
	assert.Error(t, dir.Restore(grants))

	_, fresh, _, _ := setup()
	dangling := []share.Grant{{Target: share.Target{Kind: share.KindFile, ID: uuid.New()}, GranteeID: bob, Permission: share.PermissionView}}
	assert.ErrorIs(t, fresh.Restore(dangling), errs.ErrNotFound)
}
