package domain

import "fmt"

// Method identifies a threshold method.
type Method int

const (
	MethodMAD Method = iota
	MethodIQR
	MethodLogNormal
)

// Methods lists the threshold methods in report order.
var Methods = [...]Method{MethodMAD, MethodIQR, MethodLogNormal}

// Key returns the short column prefix for the method: "mad", "iqr" or "logn".
func (m Method) Key() string {
	switch m {
	case MethodMAD:
		return "mad"
	case MethodIQR:
		return "iqr"
	case MethodLogNormal:
		return "logn"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

func (m Method) String() string { return m.Key() }

// Tier is the severity level within a method. Tier1 is moderate, Tier2 strict.
type Tier int

const (
	Tier1 Tier = 1
	Tier2 Tier = 2
)

// Level is one (method, tier) pair. The six levels index the fixed-size
// Flags and Thresholds arrays.
type Level int

const (
	MAD1 Level = iota
	MAD2
	IQR1
	IQR2
	LogN1
	LogN2
)

// NumLevels is the number of (method, tier) pairs.
const NumLevels = 6

// Levels lists every level in report order.
var Levels = [NumLevels]Level{MAD1, MAD2, IQR1, IQR2, LogN1, LogN2}

var levelDisplayNames = [NumLevels]string{
	MAD1:  "MAD1",
	MAD2:  "MAD2",
	IQR1:  "IQR1",
	IQR2:  "IQR2",
	LogN1: "Lognormal 2 Sigma",
	LogN2: "Lognormal 3 Sigma",
}

// LevelOf returns the level for a method and tier.
func LevelOf(m Method, t Tier) Level {
	return Level(int(m)*2 + int(t) - 1)
}

// Method returns the level's threshold method.
func (l Level) Method() Method { return Method(int(l) / 2) }

// Tier returns the level's severity tier.
func (l Level) Tier() Tier { return Tier(int(l)%2 + 1) }

// Key returns the short level name, e.g. "iqr1".
func (l Level) Key() string { return fmt.Sprintf("%s%d", l.Method().Key(), l.Tier()) }

// BurstColumn returns the burst flag column name, e.g. "burst_iqr1".
func (l Level) BurstColumn() string { return "burst_" + l.Key() }

// ThresholdColumn returns the threshold column name, e.g. "iqr1_threshold".
func (l Level) ThresholdColumn() string { return l.Key() + "_threshold" }

// DisplayName returns the label used in reports, e.g. "Lognormal 2 Sigma".
func (l Level) DisplayName() string {
	if l < 0 || int(l) >= NumLevels {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelDisplayNames[l]
}

func (l Level) String() string { return l.Key() }

// ParseLevel resolves a short level name such as "mad2".
func ParseLevel(key string) (Level, error) {
	for _, l := range Levels {
		if l.Key() == key {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown threshold level %q", key)
}

// Flags holds one burst flag per level.
type Flags [NumLevels]bool

// Any reports whether at least one level flagged a burst.
func (f Flags) Any() bool {
	for _, v := range f {
		if v {
			return true
		}
	}
	return false
}

// Thresholds holds one threshold per level. A nil entry is a missing value.
type Thresholds [NumLevels]*float64

// Float returns a pointer to v for populating optional values.
func Float(v float64) *float64 { return &v }
