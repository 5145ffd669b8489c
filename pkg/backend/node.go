package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/basalt-run/almanac/pkg/errs"
	"github.com/basalt-run/almanac/pkg/mst"
)

// ReadNode satisfies mst.Store. It reads the compressed frame stored
// under hash and decodes it; a missing row is ErrNodeNotFound.
func (b *Backend) ReadNode(ctx context.Context, hash mst.Hash) (*mst.Node, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, `SELECT data FROM node WHERE hash = ?`, hash.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", errs.ErrNodeNotFound, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read node %s: %v", errs.ErrIO, hash, err)
	}
	return mst.DecodeNode(data)
}

// WriteNode satisfies mst.Store. Writing an already-present hash is a
// no-op, per the node namespace's idempotent-set contract.
func (b *Backend) WriteNode(ctx context.Context, n *mst.Node) (mst.Hash, error) {
	compressed, hash := mst.EncodeNode(n)
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO node (hash, data) VALUES (?, ?) ON CONFLICT (hash) DO NOTHING`,
		hash.String(), compressed)
	if err != nil {
		return mst.Hash{}, fmt.Errorf("%w: write node %s: %v", errs.ErrIO, hash, err)
	}
	return hash, nil
}

// ListNodes returns every node hash currently stored. Order is
// unspecified.
func (b *Backend) ListNodes(ctx context.Context) ([]mst.Hash, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT hash FROM node`)
	if err != nil {
		return nil, fmt.Errorf("%w: list nodes: %v", errs.ErrIO, err)
	}
	defer rows.Close()

	var hashes []mst.Hash
	for rows.Next() {
		var hex string
		if err := rows.Scan(&hex); err != nil {
			return nil, fmt.Errorf("%w: list nodes scan: %v", errs.ErrIO, err)
		}
		h, err := mst.HashFromHex(hex)
		if err != nil {
			return nil, fmt.Errorf("%w: corrupt node hash %q: %v", errs.ErrCorrupt, hex, err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// DeleteNodes removes the given node hashes and returns how many rows
// were actually deleted. Missing hashes do not fail.
func (b *Backend) DeleteNodes(ctx context.Context, hashes []mst.Hash) (int, error) {
	if len(hashes) == 0 {
		return 0, nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: delete nodes begin: %v", errs.ErrIO, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM node WHERE hash = ?`)
	if err != nil {
		return 0, fmt.Errorf("%w: delete nodes prepare: %v", errs.ErrIO, err)
	}
	defer stmt.Close()

	var count int
	for _, h := range hashes {
		res, err := stmt.ExecContext(ctx, h.String())
		if err != nil {
			return 0, fmt.Errorf("%w: delete node %s: %v", errs.ErrIO, h, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("%w: delete node rows affected: %v", errs.ErrIO, err)
		}
		count += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: delete nodes commit: %v", errs.ErrIO, err)
	}
	return count, nil
}
