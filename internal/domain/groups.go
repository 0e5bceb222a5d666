package domain

import "strings"

// Basin is an ocean basin code. Only the values listed in Basins are valid.
type Basin string

const (
	BasinATL  Basin = "ATL"
	BasinEPAC Basin = "EPAC"
	BasinWPAC Basin = "WPAC"
	BasinIO   Basin = "IO"
	BasinSHEM Basin = "SHEM"
	BasinCPAC Basin = "CPAC"
)

// Basins lists every valid basin in report order.
var Basins = []Basin{BasinATL, BasinEPAC, BasinWPAC, BasinIO, BasinSHEM, BasinCPAC}

// ParseBasin validates a basin code.
func ParseBasin(s string) (Basin, error) {
	b := Basin(strings.TrimSpace(s))
	for _, v := range Basins {
		if b == v {
			return b, nil
		}
	}
	return "", &InvalidBasinError{Value: s}
}

// BasinFromEntityID derives the basin from a storm code such as "ATL_202212".
func BasinFromEntityID(id string) (Basin, error) {
	prefix, _, ok := strings.Cut(id, "_")
	if !ok {
		return "", &InvalidBasinError{Value: id}
	}
	return ParseBasin(prefix)
}

func basinNames() []string {
	names := make([]string, len(Basins))
	for i, b := range Basins {
		names[i] = string(b)
	}
	return names
}

// CategoryGroup is a band of current categories over which group thresholds
// are computed.
type CategoryGroup string

const (
	CategoryGroupWeak0  CategoryGroup = "0-2"
	CategoryGroupWeak1  CategoryGroup = "1-2"
	CategoryGroupStrong CategoryGroup = "3-5"
	CategoryGroupAll    CategoryGroup = "all"
)

// CategoryGroups lists every valid category group in report order.
var CategoryGroups = []CategoryGroup{CategoryGroupWeak0, CategoryGroupWeak1, CategoryGroupStrong, CategoryGroupAll}

var categoryGroupMembers = map[CategoryGroup][]string{
	CategoryGroupWeak0:  {"0", "1", "2"},
	CategoryGroupWeak1:  {"1", "2"},
	CategoryGroupStrong: {"3", "4", "5"},
	CategoryGroupAll:    {"0", "1", "2", "3", "4", "5"},
}

// ParseCategoryGroup validates a category-group label.
func ParseCategoryGroup(s string) (CategoryGroup, error) {
	g := CategoryGroup(strings.TrimSpace(s))
	if _, ok := categoryGroupMembers[g]; ok {
		return g, nil
	}
	return "", &InvalidCategoryError{Value: s}
}

// Contains reports whether a current category belongs to the group.
func (g CategoryGroup) Contains(category string) bool {
	for _, c := range categoryGroupMembers[g] {
		if c == category {
			return true
		}
	}
	return false
}

func categoryGroupNames() []string {
	names := make([]string, len(CategoryGroups))
	for i, g := range CategoryGroups {
		names[i] = string(g)
	}
	return names
}

// UnidentifiedCategory is stored for bins without a Saffir-Simpson category.
const UnidentifiedCategory = "0"

// NormalizeCategory maps an upstream current-category value to "0"–"5".
// Blank and "Unidentified" become UnidentifiedCategory; any other value
// outside 0–5 is rejected.
func NormalizeCategory(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" || strings.EqualFold(v, "unidentified") {
		return UnidentifiedCategory, nil
	}
	switch v {
	case "0", "1", "2", "3", "4", "5":
		return v, nil
	default:
		return "", &InvalidCategoryError{Value: raw}
	}
}

// intensificationMapping folds the five upstream intensification labels into three.
var intensificationMapping = map[string]string{
	"Rapidly Weakening":    "Weakening",
	"Weakening":            "Weakening",
	"Neutral":              "Neutral",
	"Intensifying":         "Intensifying",
	"Rapidly Intensifying": "Intensifying",
}

// FoldIntensification returns the three-level intensification label. Labels
// outside the mapping pass through unchanged and blank becomes "Unidentified".
func FoldIntensification(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "Unidentified"
	}
	if v, ok := intensificationMapping[label]; ok {
		return v
	}
	return label
}
