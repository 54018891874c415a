package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"

	"drive-service/internal/MinIO"
	"drive-service/internal/blob/badgerBlob"
	"drive-service/internal/blob/s3Blob"
	"drive-service/internal/notify"
	"drive-service/pkg/database/postgres"
	"drive-service/pkg/database/redis"
)

type Config struct {
	GRPCPort  string `env:"GRPC_PORT" env-default:"50051" validate:"required,numeric"`
	JWTSecret string `env:"JWT_TOKEN" validate:"required,min=16"`

	DefaultQuota int64 `env:"DEFAULT_QUOTA_BYTES" env-default:"104857600" validate:"gt=0"`
	MaxTreeDepth int   `env:"MAX_TREE_DEPTH" env-default:"256" validate:"gt=0"`

	// Journal is where committed changes are persisted; "none" keeps
	// everything in memory.
	Journal      string `env:"JOURNAL_BACKEND" env-default:"postgres" validate:"oneof=postgres none"`
	QuotaBackend string `env:"QUOTA_BACKEND" env-default:"memory" validate:"oneof=memory redis"`
	BlobBackend  string `env:"BLOB_BACKEND" env-default:"minio" validate:"oneof=memory minio s3 badger"`

	AdminAccountIDs []string `env:"ADMIN_ACCOUNT_IDS" env-separator:"," validate:"dive,uuid"`

	Postgres postgres.Config
	Redis    redis.RedisConfig
	MinIO    MinIO.Config
	S3       s3Blob.Config
	Badger   badgerBlob.Config
	SMTP     notify.Config
}

// Admins returns AdminAccountIDs parsed; Load has already validated them.
func (c *Config) Admins() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(c.AdminAccountIDs))
	for _, s := range c.AdminAccountIDs {
		out = append(out, uuid.MustParse(s))
	}
	return out
}

// Load reads path when it exists and the environment otherwise. Environment
// variables win over the file.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := os.Stat(path)
	switch {
	case err == nil:
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("cannot read config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("cannot read config from environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
