package folderTree_test

import (
	"testing"

	"drive-service/internal/errs"
	"drive-service/internal/model/folder"
	"drive-service/internal/service/folderTree"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccount(t *testing.T, tree *folderTree.Tree) (uuid.UUID, *folder.Folder) {
	t.Helper()
	acct := uuid.New()
	root, err := tree.CreateRoot(acct)
	require.NoError(t, err)
	return acct, root
}

func TestCreateFolder_NameUniqueness(t *testing.T) {
	tree := folderTree.New(0)
	acct, root := newAccount(t, tree)

	docs, err := tree.CreateFolder(acct, "Docs", nil)
	require.NoError(t, err)
	assert.Equal(t, root.ID, *docs.ParentID)

	_, err = tree.CreateFolder(acct, "Docs", &root.ID)
	assert.ErrorIs(t, err, errs.ErrConflict)

	other, err := tree.CreateFolder(acct, "Other", nil)
	require.NoError(t, err)
	_, err = tree.CreateFolder(acct, "Docs", &other.ID)
	assert.NoError(t, err)
}

func TestCreateFolder_ForeignParent(t *testing.T) {
	tree := folderTree.New(0)
	alice, _ := newAccount(t, tree)
	bob, _ := newAccount(t, tree)

	aliceDocs, err := tree.CreateFolder(alice, "Docs", nil)
	require.NoError(t, err)

	_, err = tree.CreateFolder(bob, "Sneaky", &aliceDocs.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	missing := uuid.New()
	_, err = tree.CreateFolder(alice, "x", &missing)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = tree.CreateFolder(uuid.New(), "x", nil)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCreateFolder_InvalidNames(t *testing.T) {
	tree := folderTree.New(0)
	acct, _ := newAccount(t, tree)

	for _, name := range []string{"", ".", "..", "a/b", string(make([]byte, 256))} {
		_, err := tree.CreateFolder(acct, name, nil)
		assert.ErrorIs(t, err, errs.ErrInvalidArgument, "name %q", name)
	}
}

func TestCreateFolder_DepthLimit(t *testing.T) {
	tree := folderTree.New(3)
	acct, _ := newAccount(t, tree)

	var parent *uuid.UUID
	for i := 0; i < 3; i++ {
		f, err := tree.CreateFolder(acct, "level", parent)
		require.NoError(t, err)
		parent = &f.ID
	}
	_, err := tree.CreateFolder(acct, "level", parent)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestMoveFolder_RejectsCycles(t *testing.T) {
	tree := folderTree.New(0)
	acct, _ := newAccount(t, tree)

	a, err := tree.CreateFolder(acct, "A", nil)
	require.NoError(t, err)
	b, err := tree.CreateFolder(acct, "B", &a.ID)
	require.NoError(t, err)
	c, err := tree.CreateFolder(acct, "C", &b.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, tree.MoveFolder(a.ID, a.ID), errs.ErrCycleDetected)
	assert.ErrorIs(t, tree.MoveFolder(a.ID, b.ID), errs.ErrCycleDetected)
	assert.ErrorIs(t, tree.MoveFolder(a.ID, c.ID), errs.ErrCycleDetected)

	// Unchanged after the failed moves.
	path, err := tree.Path(c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, path)
}

func TestMoveFolder(t *testing.T) {
	tree := folderTree.New(0)
	acct, root := newAccount(t, tree)
	other, _ := newAccount(t, tree)

	a, _ := tree.CreateFolder(acct, "A", nil)
	b, _ := tree.CreateFolder(acct, "B", nil)
	_, _ = tree.CreateFolder(acct, "Same", &a.ID)
	same, _ := tree.CreateFolder(acct, "Same", &b.ID)

	assert.ErrorIs(t, tree.MoveFolder(same.ID, a.ID), errs.ErrConflict)
	assert.ErrorIs(t, tree.MoveFolder(root.ID, a.ID), errs.ErrForbidden)

	otherFolder, _ := tree.CreateFolder(other, "X", nil)
	assert.ErrorIs(t, tree.MoveFolder(b.ID, otherFolder.ID), errs.ErrNotFound)
	assert.ErrorIs(t, tree.MoveFolder(uuid.New(), a.ID), errs.ErrNotFound)

	require.NoError(t, tree.MoveFolder(b.ID, a.ID))
	children, err := tree.ListChildren(a.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "Same", children[0].Name)
	assert.Equal(t, "B", children[1].Name)

	rootChildren, _ := tree.ListChildren(root.ID)
	require.Len(t, rootChildren, 1)
	assert.Equal(t, a.ID, rootChildren[0].ID)

	// Moving to the current parent is a no-op.
	assert.NoError(t, tree.MoveFolder(b.ID, a.ID))
}

func TestMoveFolder_DepthLimit(t *testing.T) {
	tree := folderTree.New(3)
	acct, _ := newAccount(t, tree)

	a, _ := tree.CreateFolder(acct, "A", nil)
	b, _ := tree.CreateFolder(acct, "B", &a.ID)
	c, _ := tree.CreateFolder(acct, "C", nil)
	_, _ = tree.CreateFolder(acct, "D", &c.ID)

	// c has height 1; under b (depth 2) it would reach depth 4.
	assert.ErrorIs(t, tree.MoveFolder(c.ID, b.ID), errs.ErrInvalidArgument)
	assert.NoError(t, tree.MoveFolder(c.ID, a.ID))
}

func TestDeleteFolder(t *testing.T) {
	tree := folderTree.New(0)
	acct, root := newAccount(t, tree)

	f, _ := tree.CreateFolder(acct, "F", nil)
	g, _ := tree.CreateFolder(acct, "G", &f.ID)
	h, _ := tree.CreateFolder(acct, "H", &g.ID)
	keep, _ := tree.CreateFolder(acct, "Keep", nil)

	planned, err := tree.Subtree(f.ID)
	require.NoError(t, err)

	removed, err := tree.DeleteFolder(f.ID)
	require.NoError(t, err)
	assert.Equal(t, planned, removed)
	assert.Equal(t, []uuid.UUID{h.ID, g.ID, f.ID}, removed)

	for _, id := range removed {
		_, err := tree.Get(id)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	}
	children, _ := tree.ListChildren(root.ID)
	require.Len(t, children, 1)
	assert.Equal(t, keep.ID, children[0].ID)

	// Name is free again.
	_, err = tree.CreateFolder(acct, "F", nil)
	assert.NoError(t, err)
}

func TestDeleteFolder_RootIsForbidden(t *testing.T) {
	tree := folderTree.New(0)
	_, root := newAccount(t, tree)

	_, err := tree.DeleteFolder(root.ID)
	assert.ErrorIs(t, err, errs.ErrForbidden)
	_, err = tree.Subtree(root.ID)
	assert.ErrorIs(t, err, errs.ErrForbidden)
	_, err = tree.RenameFolder(root.ID, "x")
	assert.ErrorIs(t, err, errs.ErrForbidden)
}

func TestRenameFolder(t *testing.T) {
	tree := folderTree.New(0)
	acct, root := newAccount(t, tree)

	a, _ := tree.CreateFolder(acct, "A", nil)
	_, _ = tree.CreateFolder(acct, "B", nil)

	_, err := tree.RenameFolder(a.ID, "B")
	assert.ErrorIs(t, err, errs.ErrConflict)

	old, err := tree.RenameFolder(a.ID, "Archive")
	require.NoError(t, err)
	assert.Equal(t, "A", old)

	_, err = tree.CreateFolder(acct, "A", &root.ID)
	assert.NoError(t, err)
	_, err = tree.CreateFolder(acct, "Archive", &root.ID)
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestRestore(t *testing.T) {
	src := folderTree.New(0)
	acct, root := newAccount(t, src)
	a, _ := src.CreateFolder(acct, "A", nil)
	b, _ := src.CreateFolder(acct, "B", &a.ID)

	dst := folderTree.New(0)
	// Children listed before their parents still link.
	require.NoError(t, dst.Restore([]folder.Folder{*b, *a, *root}))

	path, err := dst.Path(b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, path)

	gotRoot, err := dst.Root(acct)
	require.NoError(t, err)
	assert.Equal(t, root.ID, gotRoot.ID)

	_, err = dst.CreateFolder(acct, "A", nil)
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestRestore_RejectsCorruption(t *testing.T) {
	acct := uuid.New()
	x, y := uuid.New(), uuid.New()
	cyclic := []folder.Folder{
		{ID: x, OwnerID: acct, Name: "x", ParentID: &y},
		{ID: y, OwnerID: acct, Name: "y", ParentID: &x},
	}
	assert.Error(t, folderTree.New(8).Restore(cyclic))

	missing := uuid.New()
	dangling := []folder.Folder{{ID: x, OwnerID: acct, Name: "x", ParentID: &missing}}
	assert.Error(t, folderTree.New(8).Restore(dangling))
}
