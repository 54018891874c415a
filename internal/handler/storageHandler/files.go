package storageHandler

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"
)

func (h *StorageHandler) GetFile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var req idRequest
	if err := h.decode(in, &req); err != nil {
		return nil, err
	}
	fileID, err := parseID("id", req.ID)
	if err != nil {
		return nil, err
	}
	f, err := h.storage.GetFile(ctx, id, fileID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return respond(fileMap(f))
}

func (h *StorageHandler) RenameFile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var req renameRequest
	if err := h.decode(in, &req); err != nil {
		return nil, err
	}
	fileID, err := parseID("id", req.ID)
	if err != nil {
		return nil, err
	}
	if err := h.storage.RenameFile(ctx, id, fileID, req.Name); err != nil {
		return nil, toStatus(ctx, err)
	}
	return done()
}

func (h *StorageHandler) MoveFile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var req moveRequest
	if err := h.decode(in, &req); err != nil {
		return nil, err
	}
	fileID, err := parseID("id", req.ID)
	if err != nil {
		return nil, err
	}
	folderID, err := parseID("folder_id", req.FolderID)
	if err != nil {
		return nil, err
	}
	if err := h.storage.MoveFile(ctx, id, fileID, folderID); err != nil {
		return nil, toStatus(ctx, err)
	}
	return done()
}

// CopyFile copies id into folder_id.
func (h *StorageHandler) CopyFile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var req moveRequest
	if err := h.decode(in, &req); err != nil {
		return nil, err
	}
	fileID, err := parseID("id", req.ID)
	if err != nil {
		return nil, err
	}
	folderID, err := parseID("folder_id", req.FolderID)
	if err != nil {
		return nil, err
	}
	f, err := h.storage.CopyFile(ctx, id, fileID, folderID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return respond(fileMap(f))
}

func (h *StorageHandler) DeleteFile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var req idRequest
	if err := h.decode(in, &req); err != nil {
		return nil, err
	}
	fileID, err := parseID("id", req.ID)
	if err != nil {
		return nil, err
	}
	if err := h.storage.DeleteFile(ctx, id, fileID); err != nil {
		return nil, toStatus(ctx, err)
	}
	return done()
}
