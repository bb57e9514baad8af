package storage

import (
	"context"
	"fmt"
	"io"

	"feedingest/internal/config"
	"feedingest/internal/ports"
)

// Sink is a DocumentSink that holds resources.
type Sink interface {
	ports.DocumentSink
	Close(ctx context.Context) error
}

// Open selects the sink named by cfg.Driver. The log driver writes to out.
func Open(ctx context.Context, cfg config.StorageConfig, out io.Writer) (Sink, error) {
	switch cfg.Driver {
	case "", "log":
		return NewLogSink(out), nil
	case "postgres":
		sink, err := OpenPostgres(ctx, cfg.DSN, cfg.Table)
		if err != nil {
			return nil, err
		}
		if err := sink.EnsureSchema(ctx); err != nil {
			_ = sink.Close(ctx)
			return nil, err
		}
		return sink, nil
	case "mongo":
		sink, err := OpenMongo(ctx, cfg.DSN, cfg.Database, cfg.Table)
		if err != nil {
			return nil, err
		}
		return sink, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
