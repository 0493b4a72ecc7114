package tracking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIssueRoundTrip(t *testing.T) {
	issuer := NewIssuer()
	for i := 0; i < 100; i++ {
		tn := issuer.Issue()
		assert.True(t, issuer.Validate(tn), "issued number must validate: %s", tn)
		assert.True(t, strings.HasPrefix(tn, "TN-"))
	}
}

func TestIssueUnique(t *testing.T) {
	issuer := NewIssuer()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		tn := issuer.Issue()
		assert.False(t, seen[tn])
		seen[tn] = true
	}
}

func TestValidateMalformed(t *testing.T) {
	issuer := NewIssuer()
	for _, candidate := range []string{
		"",
		"../etc",
		"TN-",
		"TN-not-a-uuid",
		"TN-{0f47ac10-58cc-4372-a567-0e02b2c3d479}",
		"0f47ac10-58cc-4372-a567-0e02b2c3d479",
		"tn-0f47ac10-58cc-4372-a567-0e02b2c3d479",
		"TN-0f47ac10-58cc-4372-a567-0e02b2c3d479/..",
	} {
		assert.False(t, issuer.Validate(candidate), "must reject %q", candidate)
	}
}
