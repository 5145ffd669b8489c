package record

import (
	"fmt"

	"github.com/basalt-run/almanac/pkg/errs"
)

// SupervisingRelation classifies how one office supervises another.
// Wire strings match original_source's data.rs SupervisingRelation
// exactly.
type SupervisingRelation int

const (
	RelationHead SupervisingRelation = iota
	RelationAdviser
	RelationDuringThePleasureOf
	RelationResponsibleTo
	RelationMemberOf
	RelationMinister
)

var supervisingRelationNames = [...]string{
	RelationHead:                "head",
	RelationAdviser:             "adviser",
	RelationDuringThePleasureOf: "during_the_pleasure_of",
	RelationResponsibleTo:       "responsible_to",
	RelationMemberOf:            "member_of",
	RelationMinister:            "minister",
}

// String returns the snake_case wire form.
func (r SupervisingRelation) String() string {
	if int(r) < 0 || int(r) >= len(supervisingRelationNames) {
		return fmt.Sprintf("relation(%d)", int(r))
	}
	return supervisingRelationNames[r]
}

// ParseSupervisingRelation parses a wire string into a SupervisingRelation.
func ParseSupervisingRelation(s string) (SupervisingRelation, error) {
	for i, name := range supervisingRelationNames {
		if name == s {
			return SupervisingRelation(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown supervising relation %q", errs.ErrInvalidPath, s)
}
