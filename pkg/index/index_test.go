package index

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/basalt-run/almanac/pkg/record"
)

func newTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	idx, err := Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func queryString(t *testing.T, idx *SQLiteIndex, query string, args ...any) string {
	t.Helper()
	var got string
	err := idx.db.QueryRow(query, args...).Scan(&got)
	require.NoError(t, err)
	return got
}

func TestUpdateIndexName(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	key := record.PersonKey("p1").Name()

	require.NoError(t, idx.UpdateIndex(ctx, key, record.NameValue("Ada Lovelace")))

	got := queryString(t, idx, `SELECT name FROM entity WHERE kind = 'person' AND id = 'p1'`)
	require.Equal(t, "Ada Lovelace", got)
}

func TestUpdateIndexNameOverwritesOnConflict(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	key := record.PersonKey("p1").Name()

	require.NoError(t, idx.UpdateIndex(ctx, key, record.NameValue("Ada Lovelace")))
	require.NoError(t, idx.UpdateIndex(ctx, key, record.NameValue("Ada King")))

	got := queryString(t, idx, `SELECT name FROM entity WHERE kind = 'person' AND id = 'p1'`)
	require.Equal(t, "Ada King", got)
}

func TestUpdateIndexPhoto(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	key := record.PersonKey("p1").Photo()

	require.NoError(t, idx.UpdateIndex(ctx, key, record.PhotoValue{URL: "https://example.com/p.jpg", Attribution: "CC-BY"}))

	url := queryString(t, idx, `SELECT url FROM entity_photo WHERE kind = 'person' AND id = 'p1'`)
	require.Equal(t, "https://example.com/p.jpg", url)
}

func TestUpdateIndexContact(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	key := record.PersonKey("p1").Contact(record.ContactEmail)

	require.NoError(t, idx.UpdateIndex(ctx, key, record.ContactValue("ada@example.com")))

	value := queryString(t, idx, `SELECT value FROM entity_contact WHERE kind = 'person' AND id = 'p1' AND contact_type = 'email'`)
	require.Equal(t, "ada@example.com", value)
}

func TestUpdateIndexSupervisor(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	key := record.OfficeKey("o1").Supervisor(record.RelationHead)

	require.NoError(t, idx.UpdateIndex(ctx, key, record.SupervisorValue("o-parent")))

	value := queryString(t, idx, `SELECT supervisor_office_id FROM office_supervisor WHERE office_id = 'o1' AND relation = 'head'`)
	require.Equal(t, "o-parent", value)
}

func TestUpdateIndexTenureOngoing(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	key := record.PersonKey("p1").Tenure("o1", nil)

	require.NoError(t, idx.UpdateIndex(ctx, key, record.TenureValue{}))

	endDate := queryString(t, idx, `SELECT end_date FROM person_office_tenure WHERE person_id = 'p1' AND office_id = 'o1'`)
	require.Equal(t, "", endDate)
}

func TestUpdateIndexTenureEnded(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	key := record.PersonKey("p1").Tenure("o1", nil)
	end := time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC)

	require.NoError(t, idx.UpdateIndex(ctx, key, record.TenureValue{EndDate: &end}))

	endDate := queryString(t, idx, `SELECT end_date FROM person_office_tenure WHERE person_id = 'p1' AND office_id = 'o1'`)
	require.Equal(t, "2023-06-30", endDate)
}

func TestDeleteIndexRemovesRow(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	key := record.PersonKey("p1").Name()

	require.NoError(t, idx.UpdateIndex(ctx, key, record.NameValue("Ada Lovelace")))
	require.NoError(t, idx.DeleteIndex(ctx, key))

	var count int
	require.NoError(t, idx.db.QueryRow(`SELECT COUNT(*) FROM entity WHERE kind = 'person' AND id = 'p1'`).Scan(&count))
	require.Equal(t, 0, count)
}

func TestReplayAppliesAddsAndRemoves(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	diffs := []record.Diff{
		{Op: record.DiffAdded, Key: record.PersonKey("p1").Name(), NewValue: record.NameValue("Ada Lovelace")},
		{Op: record.DiffRemoved, Key: record.PersonKey("p2").Name(), OldValue: record.NameValue("Stale Person")},
	}
	require.NoError(t, idx.UpdateIndex(ctx, record.PersonKey("p2").Name(), record.NameValue("Stale Person")))

	require.NoError(t, idx.Replay(ctx, diffs))

	got := queryString(t, idx, `SELECT name FROM entity WHERE kind = 'person' AND id = 'p1'`)
	require.Equal(t, "Ada Lovelace", got)

	var count int
	require.NoError(t, idx.db.QueryRow(`SELECT COUNT(*) FROM entity WHERE kind = 'person' AND id = 'p2'`).Scan(&count))
	require.Equal(t, 0, count)
}

func TestReplayEmptyDiffsIsNoop(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	require.NoError(t, idx.Replay(ctx, nil))
}
