package view

import (
	"strings"

	"github.com/cockroachdb/apd"
)

// FormatAmount converts an integer amount of base units into display
// units with the given number of decimals, trimming trailing zeros.
// Input that is not a finite decimal number is returned unchanged.
func FormatAmount(baseUnits string, decimals uint8) string {
	d, _, err := apd.NewFromString(baseUnits)
	if err != nil || d.Form != apd.Finite {
		return baseUnits
	}
	d.Exponent -= int32(decimals)
	s := d.Text('f')
	if strings.Contains(s, ".") {
		s = strings.TrimSuffix(strings.TrimRight(s, "0"), ".")
	}
	return s
}
