// Package record provides the typed façade over pkg/store: paths shaped
// like <entity-kind>/<entity-id>/<field>[/<sub-key>...] instead of raw
// byte keys, and typed values instead of raw byte values. Grounded on
// original_source's src/record/mod.rs and src/data.rs.
package record

import (
	"fmt"
	"strings"
	"time"

	"github.com/basalt-run/almanac/pkg/errs"
)

// EntityKind is the top-level segment of a record path.
type EntityKind int

const (
	EntityPerson EntityKind = iota
	EntityOffice
)

func (k EntityKind) String() string {
	switch k {
	case EntityPerson:
		return "person"
	case EntityOffice:
		return "office"
	default:
		return fmt.Sprintf("entity(%d)", int(k))
	}
}

func parseEntityKind(s string) (EntityKind, error) {
	switch s {
	case "person":
		return EntityPerson, nil
	case "office":
		return EntityOffice, nil
	default:
		return 0, fmt.Errorf("%w: unknown entity kind %q", errs.ErrInvalidPath, s)
	}
}

// Field names the record slot within one entity.
type Field int

const (
	FieldName Field = iota
	FieldPhoto
	FieldContact
	FieldSupervisor
	FieldTenure
)

func (f Field) String() string {
	switch f {
	case FieldName:
		return "name"
	case FieldPhoto:
		return "photo"
	case FieldContact:
		return "contact"
	case FieldSupervisor:
		return "supervisor"
	case FieldTenure:
		return "tenure"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

const tenureDateLayout = "2006-01-02"

// Key identifies one record slot. Zero value is never valid on its own —
// build one with PersonKey/OfficeKey and a field method, or parse one
// with ParseKey.
type Key struct {
	Entity EntityKind
	ID     string
	Field  Field

	// Contact is meaningful only when Field == FieldContact.
	Contact ContactType
	// Relation is meaningful only when Field == FieldSupervisor.
	Relation SupervisingRelation
	// TenureOffice and TenureStart are meaningful only when Field ==
	// FieldTenure. A nil TenureStart addresses the "ongoing" slot.
	TenureOffice string
	TenureStart  *time.Time
}

// EntityRef is a builder anchored at one entity, used to construct
// field-specific Keys fluently: PersonKey("p1").Name(),
// OfficeKey("o1").Supervisor(record.RelationHead).
type EntityRef struct {
	kind EntityKind
	id   string
}

// PersonKey anchors key construction at a person entity.
func PersonKey(id string) EntityRef { return EntityRef{kind: EntityPerson, id: id} }

// OfficeKey anchors key construction at an office entity.
func OfficeKey(id string) EntityRef { return EntityRef{kind: EntityOffice, id: id} }

// Name addresses the entity's name slot.
func (e EntityRef) Name() Key {
	return Key{Entity: e.kind, ID: e.id, Field: FieldName}
}

// Photo addresses the entity's photo slot.
func (e EntityRef) Photo() Key {
	return Key{Entity: e.kind, ID: e.id, Field: FieldPhoto}
}

// Contact addresses one contact-type slot.
func (e EntityRef) Contact(ct ContactType) Key {
	return Key{Entity: e.kind, ID: e.id, Field: FieldContact, Contact: ct}
}

// Supervisor addresses one supervising-relation slot. Only meaningful
// for office entities, but constructible for either; ParseKey accepts
// the resulting path for a person as well, so nothing here rejects it.
func (e EntityRef) Supervisor(rel SupervisingRelation) Key {
	return Key{Entity: e.kind, ID: e.id, Field: FieldSupervisor, Relation: rel}
}

// Tenure addresses a tenure slot: a past or ongoing assignment to
// officeID. start nil addresses the open-ended "ongoing" slot for that
// office; a non-nil start disambiguates among multiple past tenures at
// the same office.
func (e EntityRef) Tenure(officeID string, start *time.Time) Key {
	return Key{
		Entity:       e.kind,
		ID:           e.id,
		Field:        FieldTenure,
		TenureOffice: officeID,
		TenureStart:  start,
	}
}

// Path renders the canonical byte-key path for k.
func (k Key) Path() string {
	base := fmt.Sprintf("%s/%s/%s", k.Entity, k.ID, k.Field)
	switch k.Field {
	case FieldContact:
		return fmt.Sprintf("%s/%s", base, k.Contact)
	case FieldSupervisor:
		return fmt.Sprintf("%s/%s", base, k.Relation)
	case FieldTenure:
		start := ""
		if k.TenureStart != nil {
			start = k.TenureStart.Format(tenureDateLayout)
		}
		return fmt.Sprintf("%s/%s/%s", base, k.TenureOffice, start)
	default:
		return base
	}
}

// EntityPrefix returns the path prefix that scans every field of this
// key's entity.
func (k Key) EntityPrefix() string {
	return fmt.Sprintf("%s/%s/", k.Entity, k.ID)
}

// KindPrefix returns the path prefix that scans every entity of this
// key's kind.
func (k Key) KindPrefix() string {
	return fmt.Sprintf("%s/", k.Entity)
}

// ParseKey parses path back into a Key, classifying its field from the
// segment shape the way parse_record does in original_source.
func ParseKey(path string) (Key, error) {
	parts := strings.Split(path, "/")
	if len(parts) < 3 {
		return Key{}, fmt.Errorf("%w: %q", errs.ErrInvalidPath, path)
	}

	entity, err := parseEntityKind(parts[0])
	if err != nil {
		return Key{}, err
	}
	id := parts[1]
	rest := parts[2:]

	switch rest[0] {
	case "name":
		if len(rest) != 1 {
			return Key{}, fmt.Errorf("%w: invalid name path %q", errs.ErrInvalidPath, path)
		}
		return Key{Entity: entity, ID: id, Field: FieldName}, nil

	case "photo":
		if len(rest) != 1 {
			return Key{}, fmt.Errorf("%w: invalid photo path %q", errs.ErrInvalidPath, path)
		}
		return Key{Entity: entity, ID: id, Field: FieldPhoto}, nil

	case "contact":
		if len(rest) != 2 {
			return Key{}, fmt.Errorf("%w: invalid contact path %q", errs.ErrInvalidPath, path)
		}
		ct, err := ParseContactType(rest[1])
		if err != nil {
			return Key{}, err
		}
		return Key{Entity: entity, ID: id, Field: FieldContact, Contact: ct}, nil

	case "supervisor":
		if len(rest) != 2 {
			return Key{}, fmt.Errorf("%w: invalid supervisor path %q", errs.ErrInvalidPath, path)
		}
		rel, err := ParseSupervisingRelation(rest[1])
		if err != nil {
			return Key{}, err
		}
		return Key{Entity: entity, ID: id, Field: FieldSupervisor, Relation: rel}, nil

	case "tenure":
		if len(rest) != 3 {
			return Key{}, fmt.Errorf("%w: invalid tenure path %q", errs.ErrInvalidPath, path)
		}
		officeID := rest[1]
		var start *time.Time
		if rest[2] != "" {
			t, err := time.Parse(tenureDateLayout, rest[2])
			if err != nil {
				return Key{}, fmt.Errorf("%w: invalid tenure start date %q", errs.ErrInvalidPath, rest[2])
			}
			start = &t
		}
		return Key{Entity: entity, ID: id, Field: FieldTenure, TenureOffice: officeID, TenureStart: start}, nil

	default:
		return Key{}, fmt.Errorf("%w: %q", errs.ErrUnknownRecordType, path)
	}
}

// classifyPath returns the Field a raw path shape belongs to, using the
// same ends_with/contains heuristics original_source's save_from_json and
// parse_record use. List calls it, since it only needs the field to decode
// a value under a raw path string.
func classifyPath(path string) (Field, error) {
	switch {
	case strings.HasSuffix(path, "/name"):
		return FieldName, nil
	case strings.HasSuffix(path, "/photo"):
		return FieldPhoto, nil
	case strings.Contains(path, "/contact/"):
		return FieldContact, nil
	case strings.Contains(path, "/supervisor/"):
		return FieldSupervisor, nil
	case strings.Contains(path, "/tenure/"):
		return FieldTenure, nil
	default:
		return 0, fmt.Errorf("%w: %q", errs.ErrUnknownRecordType, path)
	}
}
