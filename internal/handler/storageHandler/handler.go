package storageHandler

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"drive-service/internal/errs"
	"drive-service/internal/model/account"
	"drive-service/internal/model/fileInfo"
	"drive-service/internal/model/folder"
	"drive-service/internal/model/share"
	"drive-service/internal/service/quotaLedger"
	"drive-service/internal/service/storageService"
	"drive-service/pkg/logger"
	"drive-service/pkg/middleware"
)

// TokenRevoker is implemented by identity.Verifier.
type TokenRevoker interface {
	Revoke(ctx context.Context, token string) error
}

type StorageHandler struct {
	storage  *storageService.Service
	revoker  TokenRevoker
	admins   map[uuid.UUID]struct{}
	validate *validator.Validate
}

var _ StorageServer = (*StorageHandler)(nil)

// New builds the handler. Only accounts listed in admins may call SetQuota.
func New(storage *storageService.Service, revoker TokenRevoker, admins []uuid.UUID) *StorageHandler {
	h := &StorageHandler{
		storage:  storage,
		revoker:  revoker,
		admins:   make(map[uuid.UUID]struct{}, len(admins)),
		validate: validator.New(),
	}
	for _, id := range admins {
		h.admins[id] = struct{}{}
	}
	return h
}

// PublicMethods need no bearer token.
var PublicMethods = []string{FullMethod("RegisterAccount")}

func caller(ctx context.Context) (uuid.UUID, error) {
	id, ok := middleware.AccountIDFromContext(ctx)
	if !ok {
		return uuid.Nil, status.Error(codes.Unauthenticated, "no authenticated account")
	}
	return id, nil
}

// decode copies the request struct into out and validates it.
func (h *StorageHandler) decode(in *structpb.Struct, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return status.Errorf(codes.Internal, "decoder: %v", err)
	}
	if err := dec.Decode(in.AsMap()); err != nil {
		return status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	if err := h.validate.Struct(out); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}

// toStatus maps a storage error kind onto a gRPC status.
func toStatus(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var code codes.Code
	switch errs.Kind(err) {
	case "NotFound":
		code = codes.NotFound
	case "Conflict":
		code = codes.AlreadyExists
	case "CycleDetected":
		code = codes.FailedPrecondition
	case "QuotaExceeded":
		code = codes.ResourceExhausted
	case "Forbidden":
		code = codes.PermissionDenied
	case "InvalidArgument":
		code = codes.InvalidArgument
	case "DependencyError":
		logger.GetLogger(ctx).Warn("dependency failure", zap.Error(err))
		code = codes.Unavailable
	default:
		if _, isStatus := status.FromError(err); isStatus {
			return err
		}
		if errors.Is(err, context.Canceled) {
			return status.Error(codes.Canceled, err.Error())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return status.Error(codes.DeadlineExceeded, err.Error())
		}
		logger.GetLogger(ctx).Error("internal error", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}

// parseID reads a client supplied id; field names it in the error.
func parseID(field, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid %s %q", field, s)
	}
	return id, nil
}

// optionalID maps an empty field to nil.
func optionalID(field, s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := parseID(field, s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func target(kind, id string) (share.Target, error) {
	k, err := share.ParseKind(kind)
	if err != nil {
		return share.Target{}, status.Errorf(codes.InvalidArgument, "invalid kind %q", kind)
	}
	targetID, err := parseID("target_id", id)
	if err != nil {
		return share.Target{}, err
	}
	return share.Target{Kind: k, ID: targetID}, nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func respond(m map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func accountMap(a *account.Account) map[string]interface{} {
	return map[string]interface{}{
		"id":             a.ID.String(),
		"display_name":   a.DisplayName,
		"email":          a.Email,
		"root_folder_id": a.RootFolderID.String(),
		"bytes_used":     a.BytesUsed,
		"quota_limit":    a.QuotaLimit,
		"created_at":     ts(a.CreatedAt),
	}
}

func usageMap(u quotaLedger.Usage) map[string]interface{} {
	return map[string]interface{}{
		"bytes_used":  u.BytesUsed,
		"quota_limit": u.QuotaLimit,
		"available":   u.Available(),
	}
}

func folderMap(f *folder.Folder) map[string]interface{} {
	m := map[string]interface{}{
		"id":         f.ID.String(),
		"owner_id":   f.OwnerID.String(),
		"name":       f.Name,
		"created_at": ts(f.CreatedAt),
	}
	if f.ParentID != nil {
		m["parent_id"] = f.ParentID.String()
	}
	return m
}

func fileMap(f *fileInfo.File) map[string]interface{} {
	return map[string]interface{}{
		"id":           f.ID.String(),
		"owner_id":     f.OwnerID.String(),
		"folder_id":    f.FolderID.String(),
		"name":         f.Name,
		"size":         f.Size,
		"checksum":     f.Checksum,
		"content_type": f.ContentType,
		"created_at":   ts(f.CreatedAt),
		"modified_at":  ts(f.ModifiedAt),
	}
}

func grantMap(g share.Grant) map[string]interface{} {
	return map[string]interface{}{
		"kind":       string(g.Target.Kind),
		"target_id":  g.Target.ID.String(),
		"grantee_id": g.GranteeID.String(),
		"permission": g.Permission.String(),
		"granted_at": ts(g.GrantedAt),
	}
}

func list[T any](items []T, conv func(T) map[string]interface{}) []interface{} {
	out := make([]interface{}, 0, len(items))
	for _, it := range items {
		out = append(out, conv(it))
	}
	return out
}

func (h *StorageHandler) isAdmin(id uuid.UUID) bool {
	_, ok := h.admins[id]
	return ok
}

func done() (*structpb.Struct, error) {
	return respond(map[string]interface{}{"ok": true})
}
