package scrape

import (
	"strings"

	"github.com/JakeFAU/vies-crawler/internal/flatten"
)

// Record is the uniform validation result shared by every service.
type Record struct {
	CountryCode string
	VATNumber   string
	Valid       bool
	Name        string
	Address     string
	// Extra members are appended after the uniform fields, typically the raw
	// service payload.
	Extra []flatten.Member
}

// Value renders the record with the uniform fields first.
func (r Record) Value() flatten.Value {
	members := []flatten.Member{
		flatten.Field("country_code", flatten.String(r.CountryCode)),
		flatten.Field("vat_number", flatten.String(r.VATNumber)),
		flatten.Field("valid", flatten.Bool(r.Valid)),
		flatten.Field("name", flatten.String(r.Name)),
		flatten.Field("address", flatten.String(r.Address)),
	}
	return flatten.Object(append(members, r.Extra...)...)
}

// FoldLines joins a multi-line address into one line separated by spaces.
func FoldLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Join(strings.Split(s, "\n"), " ")
}
