package storageHandler

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"drive-service/internal/service/storageService"
)

type createFolderRequest struct {
	Name     string `mapstructure:"name" validate:"required"`
	ParentID string `mapstructure:"parent_id" validate:"omitempty,uuid"`
}

type renameRequest struct {
	ID   string `mapstructure:"id" validate:"required,uuid"`
	Name string `mapstructure:"name" validate:"required"`
}

type moveRequest struct {
	ID       string `mapstructure:"id" validate:"required,uuid"`
	FolderID string `mapstructure:"folder_id" validate:"required,uuid"`
}

type idRequest struct {
	ID string `mapstructure:"id" validate:"required,uuid"`
}

type browseRequest struct {
	FolderID string `mapstructure:"folder_id" validate:"omitempty,uuid"`
	Order    string `mapstructure:"order" validate:"omitempty,oneof=insertion name date"`
}

func (h *StorageHandler) CreateFolder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var req createFolderRequest
	if err := h.decode(in, &req); err != nil {
		return nil, err
	}
	parentID, err := optionalID("parent_id", req.ParentID)
	if err != nil {
		return nil, err
	}
	f, err := h.storage.CreateFolder(ctx, id, req.Name, parentID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return respond(folderMap(f))
}

func (h *StorageHandler) RenameFolder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var req renameRequest
	if err := h.decode(in, &req); err != nil {
		return nil, err
	}
	folderID, err := parseID("id", req.ID)
	if err != nil {
		return nil, err
	}
	if err := h.storage.RenameFolder(ctx, id, folderID, req.Name); err != nil {
		return nil, toStatus(ctx, err)
	}
	return done()
}

// MoveFolder reparents id under folder_id.
func (h *StorageHandler) MoveFolder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var req moveRequest
	if err := h.decode(in, &req); err != nil {
		return nil, err
	}
	folderID, err := parseID("id", req.ID)
	if err != nil {
		return nil, err
	}
	parentID, err := parseID("folder_id", req.FolderID)
	if err != nil {
		return nil, err
	}
	if err := h.storage.MoveFolder(ctx, id, folderID, parentID); err != nil {
		return nil, toStatus(ctx, err)
	}
	return done()
}

func (h *StorageHandler) DeleteFolder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var req idRequest
	if err := h.decode(in, &req); err != nil {
		return nil, err
	}
	folderID, err := parseID("id", req.ID)
	if err != nil {
		return nil, err
	}
	if err := h.storage.DeleteFolder(ctx, id, folderID); err != nil {
		return nil, toStatus(ctx, err)
	}
	return done()
}

func (h *StorageHandler) Browse(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var req browseRequest
	if err := h.decode(in, &req); err != nil {
		return nil, err
	}
	order, err := storageService.ParseSortOrder(req.Order)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	folderID, err := optionalID("folder_id", req.FolderID)
	if err != nil {
		return nil, err
	}
	listing, err := h.storage.Browse(ctx, id, folderID, order)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	path := make([]interface{}, 0, len(listing.Path))
	for _, p := range listing.Path {
		path = append(path, p)
	}
	return respond(map[string]interface{}{
		"folder":  folderMap(listing.Folder),
		"path":    path,
		"folders": list(listing.Folders, folderMap),
		"files":   list(listing.Files, fileMap),
	})
}
