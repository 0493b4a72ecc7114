// Package tracking mints the opaque identifiers that bind a checkout
// session to an order before the order exists.
package tracking

import (
	"strings"

	"github.com/google/uuid"
)

const prefix = "TN-"

type Issuer struct{}

func NewIssuer() *Issuer {
	return &Issuer{}
}

// Issue returns a new tracking number. The payload is a random UUID, so
// the value is unpredictable, collision resistant and URL safe without
// escaping.
func (i *Issuer) Issue() string {
	return prefix + uuid.NewString()
}

// Validate checks format only, with no store lookup. It never panics on
// malformed input; routing treats a false result as unknown checkout.
func (i *Issuer) Validate(candidate string) bool {
	rest, ok := strings.CutPrefix(candidate, prefix)
	if !ok {
		return false
	}
	// Exact canonical form: uuid.Parse also accepts braced and urn
	// variants, which would make the same number spellable two ways.
	if len(rest) != 36 {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}
