package export

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/couchcryptid/storm-lightning-bursts/internal/burst"
	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
)

// Group summary measures.
const (
	measureThreshold  = "Threshold"
	measureBursts     = "Threshold Bursts"
	measurePercentage = "Threshold Burst Percentage"
)

// VariantColumn composes the display name of a group summary column, e.g.
// "Basin-Category Effective Threshold Bursts (Median-Based) 2 SD". An absent
// qualifier adds nothing to the name.
func VariantColumn(qualifier domain.Label, measure string, basis burst.Basis, k float64) string {
	var b strings.Builder
	b.WriteString("Basin-Category ")
	if q, ok := qualifier.Get(); ok {
		b.WriteString(capitalize(q))
		b.WriteByte(' ')
	}
	b.WriteString(measure)
	b.WriteString(" (")
	b.WriteString(capitalize(basis.String()))
	b.WriteString("-Based) ")
	b.WriteString(formatFloat(k))
	b.WriteString(" SD")
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
