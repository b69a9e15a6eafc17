package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubject(t *testing.T) {
	tests := []struct {
		name     string
		subject  string
		prefixes []string
		want     string
	}{
		{"empty", "", nil, ""},
		{"no prefix", "Website Revamp", nil, "Website Revamp"},
		{"reply", "Re: Website Revamp", nil, "Website Revamp"},
		{"nested", "Re: Fwd: X", nil, "X"},
		{"mixed case", "rE: fw: FWD:  Pricing", nil, "Pricing"},
		{"only prefixes", "Re: RE:", nil, ""},
		{"prefix word inside", "Regarding Re: pricing", nil, "Regarding Re: pricing"},
		{"custom list", "AW: WG: Angebot", []string{"AW:", "WG:"}, "Angebot"},
		{"custom list ignores defaults", "Re: Angebot", []string{"AW:"}, "Re: Angebot"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Subject(tt.subject, tt.prefixes))
		})
	}
}
