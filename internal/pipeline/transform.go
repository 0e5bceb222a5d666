package pipeline

import (
	"context"

	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
)

// ObservationTransformer implements Transformer with domain.ParseRawEvent.
type ObservationTransformer struct{}

// NewTransformer creates an ObservationTransformer.
func NewTransformer() *ObservationTransformer {
	return &ObservationTransformer{}
}

func (t *ObservationTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.Observation, error) {
	return domain.ParseRawEvent(raw)
}
