package storageHandler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"drive-service/internal/model/share"
	"drive-service/internal/service/storageService"
	"drive-service/pkg/logger"
)

type shareRequest struct {
	Kind       string `mapstructure:"kind" validate:"required,oneof=file folder"`
	TargetID   string `mapstructure:"target_id" validate:"required,uuid"`
	GranteeID  string `mapstructure:"grantee_id" validate:"required_without=Email,omitempty,uuid"`
	Email      string `mapstructure:"email" validate:"required_without=GranteeID,omitempty,email"`
	Permission string `mapstructure:"permission" validate:"required,oneof=view edit"`
}

type unshareRequest struct {
	Kind      string `mapstructure:"kind" validate:"required,oneof=file folder"`
	TargetID  string `mapstructure:"target_id" validate:"required,uuid"`
	GranteeID string `mapstructure:"grantee_id" validate:"required,uuid"`
}

type targetRequest struct {
	Kind     string `mapstructure:"kind" validate:"required,oneof=file folder"`
	TargetID string `mapstructure:"target_id" validate:"required,uuid"`
}

type accessRequest struct {
	Kind       string `mapstructure:"kind" validate:"required,oneof=file folder"`
	TargetID   string `mapstructure:"target_id" validate:"required,uuid"`
	Permission string `mapstructure:"permission" validate:"omitempty,oneof=view edit"`
}

// Share grants by grantee_id, or by email when only the address is known.
func (h *StorageHandler) Share(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var req shareRequest
	if err := h.decode(in, &req); err != nil {
		return nil, err
	}
	perm, err := share.ParsePermission(req.Permission)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	t, err := target(req.Kind, req.TargetID)
	if err != nil {
		return nil, err
	}
	var g *share.Grant
	if req.GranteeID != "" {
		granteeID, perr := parseID("grantee_id", req.GranteeID)
		if perr != nil {
			return nil, perr
		}
		g, err = h.storage.Share(ctx, id, t, granteeID, perm)
	} else {
		g, err = h.storage.ShareByEmail(ctx, id, t, req.Email, perm)
	}
	if err != nil && g == nil {
		return nil, toStatus(ctx, err)
	}
	out := grantMap(*g)
	if err != nil {
		logger.GetLogger(ctx).Warn("grant kept without notification", zap.Error(err))
		out["notify_error"] = err.Error()
	}
	return respond(out)
}

func (h *StorageHandler) Unshare(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var req unshareRequest
	if err := h.decode(in, &req); err != nil {
		return nil, err
	}
	t, err := target(req.Kind, req.TargetID)
	if err != nil {
		return nil, err
	}
	granteeID, err := parseID("grantee_id", req.GranteeID)
	if err != nil {
		return nil, err
	}
	if err := h.storage.Unshare(ctx, id, t, granteeID); err != nil {
		return nil, toStatus(ctx, err)
	}
	return done()
}

func (h *StorageHandler) ListGrants(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var req targetRequest
	if err := h.decode(in, &req); err != nil {
		return nil, err
	}
	t, err := target(req.Kind, req.TargetID)
	if err != nil {
		return nil, err
	}
	grants, err := h.storage.ListGrants(ctx, id, t)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return respond(map[string]interface{}{"grants": list(grants, grantMap)})
}

func sharedItemMap(it storageService.SharedItem) map[string]interface{} {
	m := grantMap(it.Grant)
	switch {
	case it.File != nil:
		m["file"] = fileMap(it.File)
	case it.Folder != nil:
		m["folder"] = folderMap(it.Folder)
	}
	return m
}

func (h *StorageHandler) SharedWithMe(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.decode(in, &emptyRequest{}); err != nil {
		return nil, err
	}
	items, err := h.storage.SharedWithMe(ctx, id)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return respond(map[string]interface{}{"items": list(items, sharedItemMap)})
}

// CanAccess defaults to checking view permission.
func (h *StorageHandler) CanAccess(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var req accessRequest
	if err := h.decode(in, &req); err != nil {
		return nil, err
	}
	perm := share.PermissionView
	if req.Permission != "" {
		if perm, err = share.ParsePermission(req.Permission); err != nil {
			return nil, toStatus(ctx, err)
		}
	}
	t, err := target(req.Kind, req.TargetID)
	if err != nil {
		return nil, err
	}
	allowed := h.storage.CanAccess(ctx, id, t, perm)
	return respond(map[string]interface{}{"allowed": allowed})
}
