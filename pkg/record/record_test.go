package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKeyPathRoundTrip(t *testing.T) {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []Key{
		PersonKey("p1").Name(),
		PersonKey("p1").Photo(),
		PersonKey("p1").Contact(ContactWikidata),
		OfficeKey("o1").Supervisor(RelationHead),
		PersonKey("p1").Tenure("o1", nil),
		PersonKey("p1").Tenure("o1", &start),
	}

	for _, want := range cases {
		path := want.Path()
		got, err := ParseKey(path)
		require.NoError(t, err, path)
		require.Equal(t, want, got, path)
	}
}

func TestKeyPaths(t *testing.T) {
	require.Equal(t, "person/p1/name", PersonKey("p1").Name().Path())
	require.Equal(t, "office/o1/supervisor/head", OfficeKey("o1").Supervisor(RelationHead).Path())
	require.Equal(t, "person/p1/contact/wikidata", PersonKey("p1").Contact(ContactWikidata).Path())
	require.Equal(t, "person/p1/tenure/o1/", PersonKey("p1").Tenure("o1", nil).Path())
}

func TestParseKeyRejectsUnknownEntity(t *testing.T) {
	_, err := ParseKey("vehicle/v1/name")
	require.Error(t, err)
}

func TestParseKeyRejectsUnknownField(t *testing.T) {
	_, err := ParseKey("person/p1/favorite_color")
	require.Error(t, err)
}

func TestParseKeyRejectsBadContactType(t *testing.T) {
	_, err := ParseKey("person/p1/contact/carrier_pigeon")
	require.Error(t, err)
}

func TestEntityPrefix(t *testing.T) {
	require.Equal(t, "person/p1/", PersonKey("p1").Name().EntityPrefix())
	require.Equal(t, "person/", PersonKey("p1").Name().KindPrefix())
}

func TestEncodeDecodeName(t *testing.T) {
	raw, err := Encode(NameValue("Ada Lovelace"))
	require.NoError(t, err)

	decoded, err := Decode(FieldName, raw)
	require.NoError(t, err)
	require.Equal(t, NameValue("Ada Lovelace"), decoded)
}

func TestEncodeDecodePhotoWithAttribution(t *testing.T) {
	val := PhotoValue{URL: "https://example.com/p.jpg", Attribution: "CC-BY"}
	raw, err := Encode(val)
	require.NoError(t, err)

	decoded, err := Decode(FieldPhoto, raw)
	require.NoError(t, err)
	require.Equal(t, val, decoded)
}

func TestEncodeDecodePhotoWithoutAttribution(t *testing.T) {
	val := PhotoValue{URL: "https://example.com/p.jpg"}
	raw, err := Encode(val)
	require.NoError(t, err)

	decoded, err := Decode(FieldPhoto, raw)
	require.NoError(t, err)
	require.Equal(t, val, decoded)
}

func TestEncodeDecodeTenureOngoing(t *testing.T) {
	raw, err := Encode(TenureValue{})
	require.NoError(t, err)

	decoded, err := Decode(FieldTenure, raw)
	require.NoError(t, err)
	require.Equal(t, TenureValue{}, decoded)
}

func TestEncodeDecodeTenureEnded(t *testing.T) {
	end := time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC)
	raw, err := Encode(TenureValue{EndDate: &end})
	require.NoError(t, err)

	decoded, err := Decode(FieldTenure, raw)
	require.NoError(t, err)
	got := decoded.(TenureValue)
	require.NotNil(t, got.EndDate)
	require.True(t, end.Equal(*got.EndDate))
}

func TestContactTypeRoundTrip(t *testing.T) {
	for _, ct := range []ContactType{
		ContactAddress, ContactPhone, ContactEmail, ContactWebsite, ContactWikipedia,
		ContactX, ContactYoutube, ContactFacebook, ContactInstagram, ContactWikidata,
	} {
		parsed, err := ParseContactType(ct.String())
		require.NoError(t, err)
		require.Equal(t, ct, parsed)
	}
}

func TestSupervisingRelationRoundTrip(t *testing.T) {
	for _, rel := range []SupervisingRelation{
		RelationHead, RelationAdviser, RelationDuringThePleasureOf,
		RelationResponsibleTo, RelationMemberOf, RelationMinister,
	} {
		parsed, err := ParseSupervisingRelation(rel.String())
		require.NoError(t, err)
		require.Equal(t, rel, parsed)
	}
}

func TestSortForReplayOrdering(t *testing.T) {
	diffs := []Diff{
		{Op: DiffRemoved, Key: PersonKey("p1").Name()},
		{Op: DiffRemoved, Key: PersonKey("p1").Contact(ContactEmail)},
		{Op: DiffAdded, Key: PersonKey("p2").Contact(ContactEmail)},
		{Op: DiffAdded, Key: PersonKey("p2").Name()},
	}
	sortForReplay(diffs)

	require.Equal(t, FieldName, diffs[0].Key.Field)
	require.Equal(t, DiffAdded, diffs[0].Op)

	require.Equal(t, FieldContact, diffs[1].Key.Field)
	require.Equal(t, DiffAdded, diffs[1].Op)

	require.Equal(t, FieldContact, diffs[2].Key.Field)
	require.Equal(t, DiffRemoved, diffs[2].Op)

	require.Equal(t, FieldName, diffs[3].Key.Field)
	require.Equal(t, DiffRemoved, diffs[3].Op)
}
