package storageHandler

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"drive-service/pkg/middleware"
)

type registerRequest struct {
	DisplayName string `mapstructure:"display_name" validate:"required,max=255"`
	Email       string `mapstructure:"email" validate:"required,email"`
}

type profileRequest struct {
	DisplayName string `mapstructure:"display_name" validate:"required,max=255"`
}

type quotaRequest struct {
	AccountID  string `mapstructure:"account_id" validate:"required,uuid"`
	QuotaLimit int64  `mapstructure:"quota_limit" validate:"min=0"`
}

type emptyRequest struct{}

func (h *StorageHandler) RegisterAccount(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req registerRequest
	if err := h.decode(in, &req); err != nil {
		return nil, err
	}
	acct, err := h.storage.RegisterAccount(ctx, req.DisplayName, req.Email)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return respond(accountMap(acct))
}

func (h *StorageHandler) GetAccount(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.decode(in, &emptyRequest{}); err != nil {
		return nil, err
	}
	acct, err := h.storage.GetAccount(ctx, id)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return respond(accountMap(acct))
}

func (h *StorageHandler) UpdateProfile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var req profileRequest
	if err := h.decode(in, &req); err != nil {
		return nil, err
	}
	if err := h.storage.UpdateProfile(ctx, id, req.DisplayName); err != nil {
		return nil, toStatus(ctx, err)
	}
	return done()
}

func (h *StorageHandler) GetUsage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.decode(in, &emptyRequest{}); err != nil {
		return nil, err
	}
	usage, err := h.storage.Usage(ctx, id)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return respond(usageMap(usage))
}

// SetQuota is reserved for the configured admin accounts.
func (h *StorageHandler) SetQuota(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if !h.isAdmin(id) {
		return nil, status.Error(codes.PermissionDenied, "quota changes need an admin account")
	}
	var req quotaRequest
	if err := h.decode(in, &req); err != nil {
		return nil, err
	}
	accountID, err := parseID("account_id", req.AccountID)
	if err != nil {
		return nil, err
	}
	if err := h.storage.SetQuota(ctx, accountID, req.QuotaLimit); err != nil {
		return nil, toStatus(ctx, err)
	}
	return done()
}

// RevokeToken revokes the bearer token the call was made with.
func (h *StorageHandler) RevokeToken(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	token, ok := middleware.TokenFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no bearer token")
	}
	if err := h.decode(in, &emptyRequest{}); err != nil {
		return nil, err
	}
	if h.revoker == nil {
		return nil, status.Error(codes.Unimplemented, "token revocation is not configured")
	}
	if err := h.revoker.Revoke(ctx, token); err != nil {
		return nil, status.Errorf(codes.Unavailable, "revoke token: %v", err)
	}
	return done()
}
