package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/basalt-run/almanac/pkg/errs"
)

// GetSecret returns the raw bytes stored under name, or ErrSecretNotFound
// if it does not exist.
func (b *Backend) GetSecret(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, `SELECT data FROM secret WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", errs.ErrSecretNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get secret %s: %v", errs.ErrIO, name, err)
	}
	return data, nil
}

// SetSecret stores data under name, last-writer-wins.
func (b *Backend) SetSecret(ctx context.Context, name string, data []byte) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO secret (name, data) VALUES (?, ?) ON CONFLICT (name) DO UPDATE SET data = excluded.data`,
		name, data)
	if err != nil {
		return fmt.Errorf("%w: set secret %s: %v", errs.ErrIO, name, err)
	}
	return nil
}

// ListSecrets returns every secret name currently set.
func (b *Backend) ListSecrets(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT name FROM secret`)
	if err != nil {
		return nil, fmt.Errorf("%w: list secrets: %v", errs.ErrIO, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: list secrets scan: %v", errs.ErrIO, err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteSecrets removes the named secrets and returns how many rows were
// actually deleted.
func (b *Backend) DeleteSecrets(ctx context.Context, names []string) (int, error) {
	return deleteByKey(ctx, b.db, "secret", "name", names)
}

// deleteByKey batches a DELETE FROM table WHERE column = ? over keys,
// shared by the ref and secret namespaces (the node namespace deletes by
// a different key type and keeps its own copy in node.go).
func deleteByKey(ctx context.Context, db *sql.DB, table, column string, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: delete %s begin: %v", errs.ErrIO, table, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM `+table+` WHERE `+column+` = ?`)
	if err != nil {
		return 0, fmt.Errorf("%w: delete %s prepare: %v", errs.ErrIO, table, err)
	}
	defer stmt.Close()

	var count int
	for _, k := range keys {
		res, err := stmt.ExecContext(ctx, k)
		if err != nil {
			return 0, fmt.Errorf("%w: delete %s %s: %v", errs.ErrIO, table, k, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("%w: delete %s rows affected: %v", errs.ErrIO, table, err)
		}
		count += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: delete %s commit: %v", errs.ErrIO, table, err)
	}
	return count, nil
}
