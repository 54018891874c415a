// Command client runs a scripted session against a running storage server:
// it registers two accounts, uploads, browses, downloads, shares and cleans
// up. Tokens are minted locally with the server's JWT secret.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"drive-service/internal/handler/storageHandler"
	"drive-service/internal/service/identity"
	"drive-service/pkg/logger"
)

func main() {
	addr := flag.String("addr", "localhost:50051", "storage server address")
	secret := flag.String("secret", os.Getenv("JWT_TOKEN"), "JWT secret shared with the server")
	flag.Parse()

	ctx, err := logger.New(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.GetLogger(ctx)
	defer log.Sync()

	if *secret == "" {
		log.Fatal("a JWT secret is required, set -secret or JWT_TOKEN")
	}

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatal("cannot connect to storage server", zap.String("addr", *addr), zap.Error(err))
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := run(ctx, storageHandler.NewClient(conn, ""), identity.New(*secret, nil)); err != nil {
		log.Fatal("session failed", zap.Error(err))
	}
	log.Info("session finished")
}

type session struct {
	anon   *storageHandler.Client
	issuer *identity.Verifier
	log    *logger.Logger
}

func (s *session) register(ctx context.Context, name string) (*storageHandler.Client, map[string]interface{}, error) {
	email := fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8])
	acct, err := s.anon.Call(ctx, "RegisterAccount", map[string]interface{}{"display_name": name, "email": email})
	if err != nil {
		return nil, nil, fmt.Errorf("register %s: %w", name, err)
	}
	token, err := s.issuer.Issue(uuid.MustParse(acct["id"].(string)), time.Hour)
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("account registered", zap.Any("id", acct["id"]), zap.String("email", email))
	return s.anon.WithToken(token), acct, nil
}

func run(ctx context.Context, anon *storageHandler.Client, issuer *identity.Verifier) error {
	s := &session{anon: anon, issuer: issuer, log: logger.GetLogger(ctx)}

	alice, _, err := s.register(ctx, "alice")
	if err != nil {
		return err
	}
	bob, bobAcct, err := s.register(ctx, "bob")
	if err != nil {
		return err
	}

	docs, err := alice.Call(ctx, "CreateFolder", map[string]interface{}{"name": "docs"})
	if err != nil {
		return fmt.Errorf("create folder: %w", err)
	}

	content := []byte("quarterly numbers, do not forward")
	f, err := alice.Upload(ctx, storageHandler.UploadFile{
		Name:        "report.txt",
		FolderID:    docs["id"].(string),
		ContentType: "text/plain",
		Size:        int64(len(content)),
		Content:     bytes.NewReader(content),
	})
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	fileID := f["id"].(string)
	s.log.Info("file uploaded", zap.String("id", fileID), zap.Any("checksum", f["checksum"]))

	listing, err := alice.Call(ctx, "Browse", map[string]interface{}{"folder_id": docs["id"], "order": "name"})
	if err != nil {
		return fmt.Errorf("browse: %w", err)
	}
	s.log.Info("folder listed", zap.Any("path", listing["path"]), zap.Any("files", listing["files"]))

	var got bytes.Buffer
	if _, err := alice.Download(ctx, fileID, &got); err != nil {
		return fmt.Errorf("download: %w", err)
	}
	if !bytes.Equal(got.Bytes(), content) {
		return fmt.Errorf("downloaded content differs from upload")
	}

	if _, err := alice.Call(ctx, "Share", map[string]interface{}{
		"kind": "file", "target_id": fileID, "grantee_id": bobAcct["id"], "permission": "view",
	}); err != nil {
		return fmt.Errorf("share: %w", err)
	}
	shared, err := bob.Call(ctx, "SharedWithMe", nil)
	if err != nil {
		return fmt.Errorf("shared with me: %w", err)
	}
	s.log.Info("bob sees shared items", zap.Any("items", shared["items"]))

	if _, err := alice.Call(ctx, "DeleteFolder", map[string]interface{}{"id": docs["id"]}); err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	usage, err := alice.Call(ctx, "GetUsage", nil)
	if err != nil {
		return fmt.Errorf("usage: %w", err)
	}
	s.log.Info("usage after cleanup", zap.Any("bytes_used", usage["bytes_used"]), zap.Any("quota_limit", usage["quota_limit"]))

	if _, err := alice.Call(ctx, "RevokeToken", nil); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}
