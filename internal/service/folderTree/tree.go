// Package folderTree keeps the per-account folder hierarchy.
//
// Folders are id-indexed nodes with explicit parent ids. Ancestor walks are
// bounded by the configured maximum depth so a corrupted parent chain fails
// fast instead of looping.
package folderTree

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"drive-service/internal/errs"
	"drive-service/internal/model/folder"
)

const (
	DefaultMaxDepth = 256
	maxNameLength   = 255
)

var errCorrupted = errors.New("folder tree corrupted")

type node struct {
	f        *folder.Folder
	children []uuid.UUID
	names    map[string]uuid.UUID
}

type Tree struct {
	mu       sync.RWMutex
	maxDepth int
	nodes    map[uuid.UUID]*node
	roots    map[uuid.UUID]uuid.UUID
	now      func() time.Time
}

func New(maxDepth int) *Tree {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Tree{
		maxDepth: maxDepth,
		nodes:    make(map[uuid.UUID]*node),
		roots:    make(map[uuid.UUID]uuid.UUID),
		now:      time.Now,
	}
}

// ValidateName checks a folder or file display name.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("name %q: %w", name, errs.ErrInvalidArgument)
	case len(name) > maxNameLength:
		return fmt.Errorf("name longer than %d bytes: %w", maxNameLength, errs.ErrInvalidArgument)
	case strings.ContainsAny(name, "/\x00"):
		return fmt.Errorf("name %q contains a path separator: %w", name, errs.ErrInvalidArgument)
	}
	return nil
}

// CreateRoot creates the root folder of a newly registered account.
func (t *Tree) CreateRoot(accountID uuid.UUID) (*folder.Folder, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.roots[accountID]; ok {
		return nil, fmt.Errorf("account %s already has a root folder: %w", accountID, errs.ErrConflict)
	}
	f := &folder.Folder{
		ID:        uuid.New(),
		OwnerID:   accountID,
		Name:      "/",
		CreatedAt: t.now(),
	}
	t.nodes[f.ID] = &node{f: f, names: make(map[string]uuid.UUID)}
	t.roots[accountID] = f.ID
	return f.Clone(), nil
}

// RemoveRoot drops an empty root folder. It only undoes CreateRoot.
func (t *Tree) RemoveRoot(accountID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, ok := t.roots[accountID]
	if !ok || len(t.nodes[id].children) > 0 {
		return
	}
	delete(t.nodes, id)
	delete(t.roots, accountID)
}

func (t *Tree) CreateFolder(accountID uuid.UUID, name string, parentID *uuid.UUID) (*folder.Folder, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	parent, err := t.ownedLocked(accountID, parentID)
	if err != nil {
		return nil, err
	}
	if _, taken := parent.names[name]; taken {
		return nil, fmt.Errorf("folder %q already exists: %w", name, errs.ErrConflict)
	}
	depth, err := t.depthLocked(parent.f.ID)
	if err != nil {
		return nil, err
	}
	if depth+1 > t.maxDepth {
		return nil, fmt.Errorf("folder depth exceeds %d: %w", t.maxDepth, errs.ErrInvalidArgument)
	}

	pid := parent.f.ID
	f := &folder.Folder{
		ID:        uuid.New(),
		OwnerID:   accountID,
		Name:      name,
		ParentID:  &pid,
		CreatedAt: t.now(),
	}
	t.linkLocked(parent, &node{f: f, names: make(map[string]uuid.UUID)})
	return f.Clone(), nil
}

// RenameFolder renames a non-root folder and returns its previous name.
func (t *Tree) RenameFolder(folderID uuid.UUID, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[folderID]
	if !ok {
		return "", fmt.Errorf("folder %s: %w", folderID, errs.ErrNotFound)
	}
	if n.f.IsRoot() {
		return "", fmt.Errorf("root folder cannot be renamed: %w", errs.ErrForbidden)
	}
	old := n.f.Name
	if old == name {
		return old, nil
	}
	parent := t.nodes[*n.f.ParentID]
	if _, taken := parent.names[name]; taken {
		return "", fmt.Errorf("folder %q already exists: %w", name, errs.ErrConflict)
	}
	delete(parent.names, old)
	parent.names[name] = folderID
	n.f.Name = name
	return old, nil
}

// MoveFolder re-parents folderID under newParentID within the same account.
func (t *Tree) MoveFolder(folderID, newParentID uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[folderID]
	if !ok {
		return fmt.Errorf("folder %s: %w", folderID, errs.ErrNotFound)
	}
	dest, ok := t.nodes[newParentID]
	if !ok || dest.f.OwnerID != n.f.OwnerID {
		return fmt.Errorf("folder %s: %w", newParentID, errs.ErrNotFound)
	}
	if n.f.IsRoot() {
		return fmt.Errorf("root folder cannot be moved: %w", errs.ErrForbidden)
	}

	inside, err := t.isAncestorLocked(folderID, newParentID)
	if err != nil {
		return err
	}
	if inside {
		return fmt.Errorf("moving %s under %s: %w", folderID, newParentID, errs.ErrCycleDetected)
	}
	if *n.f.ParentID == newParentID {
		return nil
	}
	if _, taken := dest.names[n.f.Name]; taken {
		return fmt.Errorf("folder %q already exists at destination: %w", n.f.Name, errs.ErrConflict)
	}

	destDepth, err := t.depthLocked(newParentID)
	if err != nil {
		return err
	}
	if destDepth+1+t.heightLocked(n) > t.maxDepth {
		return fmt.Errorf("folder depth exceeds %d: %w", t.maxDepth, errs.ErrInvalidArgument)
	}

	t.unlinkLocked(n)
	t.linkLocked(dest, n)
	return nil
}

// Subtree returns folderID and all its descendants, children before parents.
func (t *Tree) Subtree(folderID uuid.UUID) ([]uuid.UUID, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.nodes[folderID]
	if !ok {
		return nil, fmt.Errorf("folder %s: %w", folderID, errs.ErrNotFound)
	}
	if n.f.IsRoot() {
		return nil, fmt.Errorf("root folder cannot be deleted: %w", errs.ErrForbidden)
	}
	return t.postOrderLocked(n, nil), nil
}

// DeleteFolder removes folderID and its descendants and returns the removed
// ids in post-order. Files are not touched; the caller removes them first.
func (t *Tree) DeleteFolder(folderID uuid.UUID) ([]uuid.UUID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[folderID]
	if !ok {
		return nil, fmt.Errorf("folder %s: %w", folderID, errs.ErrNotFound)
	}
	if n.f.IsRoot() {
		return nil, fmt.Errorf("root folder cannot be deleted: %w", errs.ErrForbidden)
	}

	removed := t.postOrderLocked(n, nil)
	t.unlinkLocked(n)
	for _, id := range removed {
		delete(t.nodes, id)
	}
	return removed, nil
}

func (t *Tree) ListChildren(folderID uuid.UUID) ([]*folder.Folder, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.nodes[folderID]
	if !ok {
		return nil, fmt.Errorf("folder %s: %w", folderID, errs.ErrNotFound)
	}
	out := make([]*folder.Folder, 0, len(n.children))
	for _, id := range n.children {
		out = append(out, t.nodes[id].f.Clone())
	}
	return out, nil
}

func (t *Tree) Get(folderID uuid.UUID) (*folder.Folder, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.nodes[folderID]
	if !ok {
		return nil, fmt.Errorf("folder %s: %w", folderID, errs.ErrNotFound)
	}
	return n.f.Clone(), nil
}

func (t *Tree) Owner(folderID uuid.UUID) (uuid.UUID, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.nodes[folderID]
	if !ok {
		return uuid.Nil, fmt.Errorf("folder %s: %w", folderID, errs.ErrNotFound)
	}
	return n.f.OwnerID, nil
}

func (t *Tree) Root(accountID uuid.UUID) (*folder.Folder, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	id, ok := t.roots[accountID]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, errs.ErrNotFound)
	}
	return t.nodes[id].f.Clone(), nil
}

// Path returns the folder names from the account root down to folderID.
// The root itself contributes no element.
func (t *Tree) Path(folderID uuid.UUID) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var names []string
	cur, ok := t.nodes[folderID]
	if !ok {
		return nil, fmt.Errorf("folder %s: %w", folderID, errs.ErrNotFound)
	}
	for steps := 0; !cur.f.IsRoot(); steps++ {
		if steps > t.maxDepth {
			return nil, fmt.Errorf("folder %s: %w", folderID, errCorrupted)
		}
		names = append(names, cur.f.Name)
		cur = t.nodes[*cur.f.ParentID]
	}
	slices.Reverse(names)
	return names, nil
}

// Restore loads persisted folders into an empty tree. Children keep the
// order in which they appear in folders.
func (t *Tree) Restore(folders []folder.Folder) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.nodes) > 0 {
		return errors.New("restore into a non-empty folder tree")
	}
	for i := range folders {
		f := folders[i].Clone()
		if _, dup := t.nodes[f.ID]; dup {
			return fmt.Errorf("duplicate folder %s: %w", f.ID, errCorrupted)
		}
		t.nodes[f.ID] = &node{f: f, names: make(map[string]uuid.UUID)}
		if f.IsRoot() {
			if _, dup := t.roots[f.OwnerID]; dup {
				return fmt.Errorf("account %s has two roots: %w", f.OwnerID, errCorrupted)
			}
			t.roots[f.OwnerID] = f.ID
		}
	}
	for i := range folders {
		n := t.nodes[folders[i].ID]
		if n.f.IsRoot() {
			continue
		}
		parent, ok := t.nodes[*n.f.ParentID]
		if !ok || parent.f.OwnerID != n.f.OwnerID {
			return fmt.Errorf("folder %s has a dangling parent: %w", n.f.ID, errCorrupted)
		}
		if _, taken := parent.names[n.f.Name]; taken {
			return fmt.Errorf("folder %s duplicates a sibling name: %w", n.f.ID, errCorrupted)
		}
		parent.names[n.f.Name] = n.f.ID
		parent.children = append(parent.children, n.f.ID)
	}
	for id := range t.nodes {
		if _, err := t.depthLocked(id); err != nil {
			return err
		}
	}
	return nil
}

// ownedLocked resolves parentID (or the account root when nil) and checks it
// belongs to accountID.
func (t *Tree) ownedLocked(accountID uuid.UUID, parentID *uuid.UUID) (*node, error) {
	if parentID == nil {
		id, ok := t.roots[accountID]
		if !ok {
			return nil, fmt.Errorf("account %s: %w", accountID, errs.ErrNotFound)
		}
		return t.nodes[id], nil
	}
	n, ok := t.nodes[*parentID]
	if !ok || n.f.OwnerID != accountID {
		return nil, fmt.Errorf("folder %s: %w", *parentID, errs.ErrNotFound)
	}
	return n, nil
}

func (t *Tree) depthLocked(id uuid.UUID) (int, error) {
	cur := t.nodes[id]
	for depth := 0; ; depth++ {
		if depth > t.maxDepth {
			return 0, fmt.Errorf("folder %s: ancestry deeper than %d: %w", id, t.maxDepth, errCorrupted)
		}
		if cur.f.IsRoot() {
			return depth, nil
		}
		cur = t.nodes[*cur.f.ParentID]
	}
}

// isAncestorLocked reports whether candidate is of or one of its ancestors.
func (t *Tree) isAncestorLocked(candidate, of uuid.UUID) (bool, error) {
	cur := of
	for steps := 0; steps <= t.maxDepth; steps++ {
		if cur == candidate {
			return true, nil
		}
		n := t.nodes[cur]
		if n.f.IsRoot() {
			return false, nil
		}
		cur = *n.f.ParentID
	}
	return false, fmt.Errorf("folder %s: ancestry deeper than %d: %w", of, t.maxDepth, errCorrupted)
}

func (t *Tree) heightLocked(n *node) int {
	h := 0
	for _, id := range n.children {
		h = max(h, 1+t.heightLocked(t.nodes[id]))
	}
	return h
}

func (t *Tree) postOrderLocked(n *node, out []uuid.UUID) []uuid.UUID {
	for _, id := range n.children {
		out = t.postOrderLocked(t.nodes[id], out)
	}
	return append(out, n.f.ID)
}

func (t *Tree) linkLocked(parent, child *node) {
	pid := parent.f.ID
	child.f.ParentID = &pid
	parent.children = append(parent.children, child.f.ID)
	parent.names[child.f.Name] = child.f.ID
	t.nodes[child.f.ID] = child
}

func (t *Tree) unlinkLocked(n *node) {
	parent := t.nodes[*n.f.ParentID]
	delete(parent.names, n.f.Name)
	if i := slices.Index(parent.children, n.f.ID); i >= 0 {
		parent.children = slices.Delete(parent.children, i, i+1)
	}
}
