package burst_test

import (
	"time"

	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
)

var t0 = time.Date(2022, time.September, 20, 0, 0, 0, 0, time.UTC)

// obs builds an observation in bin i (30-minute bins) with the given raw count
// and log count.
func obs(entity string, i, count int, logCount float64) domain.Observation {
	basin, _ := domain.BasinFromEntityID(entity)
	return domain.Observation{
		EntityID: entity,
		Time:     t0.Add(time.Duration(i) * 30 * time.Minute),
		Count:    count,
		LogCount: logCount,
		Basin:    basin,
		Category: "1",
		Knots:    65,
	}
}

// series builds one observation per log count, bins 0..n-1.
func series(entity string, logCounts ...float64) []domain.Observation {
	out := make([]domain.Observation, len(logCounts))
	for i, v := range logCounts {
		out[i] = obs(entity, i, 1, v)
	}
	return out
}

func ptr(v float64) *float64 { return &v }
