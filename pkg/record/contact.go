package record

import (
	"fmt"

	"github.com/basalt-run/almanac/pkg/errs"
)

// ContactType classifies a person or office contact value. Wire strings
// match original_source's data.rs ContactType exactly.
type ContactType int

const (
	ContactAddress ContactType = iota
	ContactPhone
	ContactEmail
	ContactWebsite
	ContactWikipedia
	ContactX
	ContactYoutube
	ContactFacebook
	ContactInstagram
	ContactWikidata
)

var contactTypeNames = [...]string{
	ContactAddress:   "address",
	ContactPhone:     "phone",
	ContactEmail:     "email",
	ContactWebsite:   "website",
	ContactWikipedia: "wikipedia",
	ContactX:         "x",
	ContactYoutube:   "youtube",
	ContactFacebook:  "facebook",
	ContactInstagram: "instagram",
	ContactWikidata:  "wikidata",
}

// String returns the snake_case wire form.
func (c ContactType) String() string {
	if int(c) < 0 || int(c) >= len(contactTypeNames) {
		return fmt.Sprintf("contact(%d)", int(c))
	}
	return contactTypeNames[c]
}

// ParseContactType parses a wire string into a ContactType.
func ParseContactType(s string) (ContactType, error) {
	for i, name := range contactTypeNames {
		if name == s {
			return ContactType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown contact type %q", errs.ErrInvalidPath, s)
}
