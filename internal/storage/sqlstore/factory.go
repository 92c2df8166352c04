package sqlstore

import (
	"context"
	"time"

	"renda-edge/internal/common/logging"
	"renda-edge/internal/storage"
)

func opener(typ string) storage.Opener {
	return func(ctx context.Context, config storage.Config) (storage.Storage, error) {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		return Open(ctx, typ, config.DSN, logging.GetGlobalLogger())
	}
}

func init() {
	storage.Register("sqlite", opener("sqlite"))
	storage.Register("postgres", opener("postgres"))
}
