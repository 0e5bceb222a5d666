package domain

import (
	"bytes"
	"encoding/json"
)

// Label is an optional string label such as a shear quadrant or a report
// qualifier. The zero value is absent.
type Label struct {
	value   string
	present bool
}

// NoLabel is the absent label.
var NoLabel = Label{}

// NewLabel returns a present label. An empty string is treated as absent.
func NewLabel(v string) Label {
	if v == "" {
		return NoLabel
	}
	return Label{value: v, present: true}
}

// Get returns the value and whether the label is present.
func (l Label) Get() (string, bool) { return l.value, l.present }

// Present reports whether the label carries a value.
func (l Label) Present() bool { return l.present }

// String returns the value, or "" when absent.
func (l Label) String() string { return l.value }

func (l Label) MarshalJSON() ([]byte, error) {
	if !l.present {
		return []byte("null"), nil
	}
	return json.Marshal(l.value)
}

func (l *Label) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*l = NoLabel
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*l = NewLabel(s)
	return nil
}

// Equal reports whether two labels hold the same value and presence.
func (l Label) Equal(o Label) bool { return l == o }
