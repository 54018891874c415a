package middleware

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"drive-service/pkg/logger"
)

// TokenVerifier resolves a bearer token to an account id.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (uuid.UUID, error)
}

type accountKey struct{}
type tokenKey struct{}

// AccountIDFromContext returns the account id stored by the interceptors.
func AccountIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(accountKey{}).(uuid.UUID)
	return id, ok
}

// TokenFromContext returns the raw bearer token of the call.
func TokenFromContext(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenKey{}).(string)
	return tok, ok
}

// WithAccountID is what the interceptors store; handlers' tests use it too.
func WithAccountID(ctx context.Context, accountID uuid.UUID) context.Context {
	return context.WithValue(ctx, accountKey{}, accountID)
}

func authenticate(ctx context.Context, verifier TokenVerifier, method string) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "metadata not provided")
	}
	authHeader := md.Get("authorization")
	if len(authHeader) == 0 {
		return nil, status.Error(codes.Unauthenticated, "authorization token not provided")
	}
	token, found := strings.CutPrefix(authHeader[0], "Bearer ")
	if !found || token == "" {
		return nil, status.Error(codes.Unauthenticated, "authorization header is not a bearer token")
	}

	accountID, err := verifier.Verify(ctx, token)
	if err != nil {
		logger.GetLogger(ctx).Info("token rejected", zap.String("method", method), zap.Error(err))
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	ctx = WithAccountID(ctx, accountID)
	ctx = context.WithValue(ctx, tokenKey{}, token)
	return logger.WithLogger(ctx, logger.GetLogger(ctx).With(zap.Stringer("account_id", accountID)).Zap()), nil
}

// AuthInterceptor authenticates every unary call except the methods listed
// in public.
func AuthInterceptor(verifier TokenVerifier, public ...string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		for _, m := range public {
			if info.FullMethod == m {
				return handler(ctx, req)
			}
		}
		newCtx, err := authenticate(ctx, verifier, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(newCtx, req)
	}
}

func StreamAuthInterceptor(verifier TokenVerifier, public ...string) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		for _, m := range public {
			if info.FullMethod == m {
				return handler(srv, ss)
			}
		}
		newCtx, err := authenticate(ss.Context(), verifier, info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: newCtx})
	}
}

// wrappedServerStream carries the authenticated context into stream handlers.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}

// LoggerInterceptor puts base into every call's context.
func LoggerInterceptor(base *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx = logger.WithLogger(ctx, base.With(zap.String("method", info.FullMethod)))
		return handler(ctx, req)
	}
}

func StreamLoggerInterceptor(base *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := logger.WithLogger(ss.Context(), base.With(zap.String("method", info.FullMethod)))
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}
