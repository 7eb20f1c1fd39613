package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shaiso/Probe/internal/mq"
	"github.com/shaiso/Probe/internal/repo"
)

// ErrNoDatabase — команда требует database_url.
var ErrNoDatabase = errors.New("database_url is not configured")

// openStore подключается к PostgreSQL и создаёт схему при необходимости.
func openStore(ctx context.Context, dsn string) (*repo.RunRepo, func(), error) {
	pool, err := repo.NewPool(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := repo.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repo.NewRunRepo(pool), pool.Close, nil
}

// openPublisher подключается к RabbitMQ и объявляет топологию.
func openPublisher(ctx context.Context, url string, logger *slog.Logger) (*mq.Publisher, func(), error) {
	conn, err := mq.NewConnection(url, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := mq.SetupTopology(ctx, conn); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return mq.NewPublisher(conn, logger), func() { _ = conn.Close() }, nil
}
