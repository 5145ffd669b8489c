package index

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/basalt-run/almanac/pkg/errs"
	"github.com/basalt-run/almanac/pkg/record"
)

// execer is satisfied by both *sql.DB and *sql.Tx, letting apply/remove
// run either directly against the index's connection (the live
// update/delete hooks) or inside a transaction (Replay).
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func apply(ctx context.Context, ex execer, key record.Key, value record.Value) error {
	switch key.Field {
	case record.FieldName:
		name, ok := value.(record.NameValue)
		if !ok {
			return fmt.Errorf("%w: expected NameValue for name field", errs.ErrCodec)
		}
		_, err := ex.ExecContext(ctx,
			`INSERT INTO entity (kind, id, name) VALUES (?, ?, ?)
			 ON CONFLICT (kind, id) DO UPDATE SET name = excluded.name`,
			key.Entity.String(), key.ID, string(name))
		return wrapExecErr(err, "upsert entity")

	case record.FieldPhoto:
		photo, ok := value.(record.PhotoValue)
		if !ok {
			return fmt.Errorf("%w: expected PhotoValue for photo field", errs.ErrCodec)
		}
		_, err := ex.ExecContext(ctx,
			`INSERT INTO entity_photo (kind, id, url, attribution) VALUES (?, ?, ?, ?)
			 ON CONFLICT (kind, id) DO UPDATE SET url = excluded.url, attribution = excluded.attribution`,
			key.Entity.String(), key.ID, photo.URL, photo.Attribution)
		return wrapExecErr(err, "upsert entity_photo")

	case record.FieldContact:
		contact, ok := value.(record.ContactValue)
		if !ok {
			return fmt.Errorf("%w: expected ContactValue for contact field", errs.ErrCodec)
		}
		_, err := ex.ExecContext(ctx,
			`INSERT INTO entity_contact (kind, id, contact_type, value) VALUES (?, ?, ?, ?)
			 ON CONFLICT (kind, id, contact_type) DO UPDATE SET value = excluded.value`,
			key.Entity.String(), key.ID, key.Contact.String(), string(contact))
		return wrapExecErr(err, "upsert entity_contact")

	case record.FieldSupervisor:
		supervisor, ok := value.(record.SupervisorValue)
		if !ok {
			return fmt.Errorf("%w: expected SupervisorValue for supervisor field", errs.ErrCodec)
		}
		_, err := ex.ExecContext(ctx,
			`INSERT INTO office_supervisor (office_id, relation, supervisor_office_id) VALUES (?, ?, ?)
			 ON CONFLICT (office_id, relation) DO UPDATE SET supervisor_office_id = excluded.supervisor_office_id`,
			key.ID, key.Relation.String(), string(supervisor))
		return wrapExecErr(err, "upsert office_supervisor")

	case record.FieldTenure:
		tenure, ok := value.(record.TenureValue)
		if !ok {
			return fmt.Errorf("%w: expected TenureValue for tenure field", errs.ErrCodec)
		}
		endDate := ""
		if tenure.EndDate != nil {
			endDate = tenure.EndDate.Format("2006-01-02")
		}
		_, err := ex.ExecContext(ctx,
			`INSERT INTO person_office_tenure (person_id, office_id, end_date) VALUES (?, ?, ?)
			 ON CONFLICT (person_id, office_id) DO UPDATE SET end_date = excluded.end_date`,
			key.ID, key.TenureOffice, endDate)
		return wrapExecErr(err, "upsert person_office_tenure")

	default:
		return fmt.Errorf("%w: unindexable field %v", errs.ErrUnknownRecordType, key.Field)
	}
}

func remove(ctx context.Context, ex execer, key record.Key) error {
	switch key.Field {
	case record.FieldName:
		_, err := ex.ExecContext(ctx, `DELETE FROM entity WHERE kind = ? AND id = ?`, key.Entity.String(), key.ID)
		return wrapExecErr(err, "delete entity")
	case record.FieldPhoto:
		_, err := ex.ExecContext(ctx, `DELETE FROM entity_photo WHERE kind = ? AND id = ?`, key.Entity.String(), key.ID)
		return wrapExecErr(err, "delete entity_photo")
	case record.FieldContact:
		_, err := ex.ExecContext(ctx,
			`DELETE FROM entity_contact WHERE kind = ? AND id = ? AND contact_type = ?`,
			key.Entity.String(), key.ID, key.Contact.String())
		return wrapExecErr(err, "delete entity_contact")
	case record.FieldSupervisor:
		_, err := ex.ExecContext(ctx,
			`DELETE FROM office_supervisor WHERE office_id = ? AND relation = ?`,
			key.ID, key.Relation.String())
		return wrapExecErr(err, "delete office_supervisor")
	case record.FieldTenure:
		_, err := ex.ExecContext(ctx,
			`DELETE FROM person_office_tenure WHERE person_id = ? AND office_id = ?`,
			key.ID, key.TenureOffice)
		return wrapExecErr(err, "delete person_office_tenure")
	default:
		return fmt.Errorf("%w: unindexable field %v", errs.ErrUnknownRecordType, key.Field)
	}
}

func wrapExecErr(err error, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", errs.ErrIO, action, err)
}

// UpdateIndex satisfies record.Index: a live upsert after a successful
// save.
func (idx *SQLiteIndex) UpdateIndex(ctx context.Context, key record.Key, value record.Value) error {
	return apply(ctx, idx.db, key, value)
}

// DeleteIndex satisfies record.Index: a live row removal after a
// successful delete.
func (idx *SQLiteIndex) DeleteIndex(ctx context.Context, key record.Key) error {
	return remove(ctx, idx.db, key)
}

// Replay satisfies record.Index: diffs arrive pre-sorted by
// record.sortForReplay (name adds/changes, other adds/changes, other
// removes, name removes) and are applied inside a single transaction so
// a crash mid-replay never leaves the index in a state between two
// working trees.
func (idx *SQLiteIndex) Replay(ctx context.Context, diffs []record.Diff) error {
	if len(diffs) == 0 {
		return nil
	}

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: replay begin: %v", errs.ErrIO, err)
	}
	defer tx.Rollback()

	for _, d := range diffs {
		switch d.Op {
		case record.DiffAdded, record.DiffChanged:
			if err := apply(ctx, tx, d.Key, d.NewValue); err != nil {
				return err
			}
		case record.DiffRemoved:
			if err := remove(ctx, tx, d.Key); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unknown diff op %v", errs.ErrCodec, d.Op)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: replay commit: %v", errs.ErrIO, err)
	}
	return nil
}
