package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"

	"github.com/MKhiriev/go-care-keeper/internal/logger"
)

type localKVRepository struct {
	*DB
	logger *logger.Logger
	now    func() time.Time
}

// NewLocalKVRepository returns a [Medium] backed by the kv_entries table of
// db. The schema must already be migrated.
func NewLocalKVRepository(db *DB, logger *logger.Logger) Medium {
	return &localKVRepository{
		DB:     db,
		logger: logger,
		now:    time.Now,
	}
}

func (l *localKVRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	log := logger.FromContext(ctx)

	if key == "" {
		return nil, false, ErrEmptyKey
	}

	query, args, err := sq.Select(kvValueColumn).
		From(kvTable).
		Where(sq.Eq{kvKeyColumn: key}).
		ToSql()
	if err != nil {
		log.Err(err).Str("func", "localKVRepository.Get").Msg("failed to build get query")
		return nil, false, storageError(ErrBuildingSQLQuery, err)
	}

	var value []byte
	err = l.DB.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		log.Err(err).
			Str("func", "localKVRepository.Get").
			Str("key", key).
			Msg("failed to query kv entry")
		return nil, false, storageError(ErrExecutingQuery, err)
	}

	return value, true, nil
}

func (l *localKVRepository) Set(ctx context.Context, key string, value []byte) error {
	return l.Apply(ctx, PutOp(key, value))
}

func (l *localKVRepository) Remove(ctx context.Context, key string) error {
	return l.Apply(ctx, DeleteOp(key))
}

func (l *localKVRepository) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	log := logger.FromContext(ctx)

	builder := sq.Select(kvKeyColumn).From(kvTable).OrderBy(kvKeyColumn)
	if prefix != "" {
		builder = builder.Where(sq.Expr("substr("+kvKeyColumn+", 1, ?) = ?", utf8.RuneCountInString(prefix), prefix))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		log.Err(err).Str("func", "localKVRepository.ListKeys").Msg("failed to build list keys query")
		return nil, storageError(ErrBuildingSQLQuery, err)
	}

	rows, err := l.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "localKVRepository.ListKeys").
			Str("prefix", prefix).
			Msg("failed to execute list keys query")
		return nil, storageError(ErrExecutingQuery, err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err = rows.Scan(&key); err != nil {
			log.Err(err).Str("func", "localKVRepository.ListKeys").Msg("failed to scan kv key row")
			return nil, storageError(ErrScanningRows, err)
		}
		keys = append(keys, key)
	}

	if err = rows.Err(); err != nil {
		log.Err(err).Str("func", "localKVRepository.ListKeys").Msg("error occurred during rows iteration")
		return nil, storageError(ErrScanningRows, err)
	}

	return keys, nil
}

func (l *localKVRepository) Apply(ctx context.Context, ops ...Op) error {
	log := logger.FromContext(ctx)

	if len(ops) == 0 {
		return nil
	}
	for _, op := range ops {
		if op.Key == "" {
			return ErrEmptyKey
		}
	}

	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Err(err).Str("func", "localKVRepository.Apply").Msg("failed to begin transaction")
		return storageError(ErrBeginningTransaction, err)
	}
	defer tx.Rollback()

	now := l.now().UTC()
	for _, op := range ops {
		if op.Delete {
			_, err = tx.ExecContext(ctx, deleteValue, op.Key)
		} else {
			_, err = tx.ExecContext(ctx, upsertValue, op.Key, op.Value, now)
		}
		if err != nil {
			log.Err(err).
				Str("func", "localKVRepository.Apply").
				Str("key", op.Key).
				Bool("delete", op.Delete).
				Msg("failed to execute kv write")
			return storageError(ErrExecutingStatement, err)
		}
	}

	if err = tx.Commit(); err != nil {
		log.Err(err).Str("func", "localKVRepository.Apply").Msg("failed to commit transaction")
		return storageError(ErrCommitingTransaction, err)
	}

	return nil
}

func (l *localKVRepository) Close() error {
	return l.DB.Close()
}
