package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/basalt-run/almanac/pkg/errs"
	"github.com/basalt-run/almanac/pkg/mst"
)

// GetRef returns the hash the named ref currently points to, or
// ErrRefNotFound if it does not exist.
func (b *Backend) GetRef(ctx context.Context, name string) (mst.Hash, error) {
	var raw []byte
	err := b.db.QueryRowContext(ctx, `SELECT hash FROM ref WHERE name = ?`, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return mst.Hash{}, fmt.Errorf("%w: %s", errs.ErrRefNotFound, name)
	}
	if err != nil {
		return mst.Hash{}, fmt.Errorf("%w: get ref %s: %v", errs.ErrIO, name, err)
	}
	h, err := mst.HashFromBytes(raw)
	if err != nil {
		return mst.Hash{}, fmt.Errorf("%w: corrupt ref %s: %v", errs.ErrCorrupt, name, err)
	}
	return h, nil
}

// SetRef points name at hash, last-writer-wins.
func (b *Backend) SetRef(ctx context.Context, name string, hash mst.Hash) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO ref (name, hash) VALUES (?, ?) ON CONFLICT (name) DO UPDATE SET hash = excluded.hash`,
		name, hash[:])
	if err != nil {
		return fmt.Errorf("%w: set ref %s: %v", errs.ErrIO, name, err)
	}
	return nil
}

// ListRefs returns every ref name currently set.
func (b *Backend) ListRefs(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT name FROM ref`)
	if err != nil {
		return nil, fmt.Errorf("%w: list refs: %v", errs.ErrIO, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: list refs scan: %v", errs.ErrIO, err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteRefs removes the named refs and returns how many rows were
// actually deleted.
func (b *Backend) DeleteRefs(ctx context.Context, names []string) (int, error) {
	return deleteByKey(ctx, b.db, "ref", "name", names)
}
