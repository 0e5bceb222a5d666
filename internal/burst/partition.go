package burst

import (
	"cmp"
	"slices"

	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
)

// entityKey identifies one partition: a storm, optionally split by sub-partition.
type entityKey struct {
	entity    string
	partition domain.Label
}

func compareKeys(a, b entityKey) int {
	if c := cmp.Compare(a.entity, b.entity); c != 0 {
		return c
	}
	return cmp.Compare(a.partition.String(), b.partition.String())
}

// partitionRows splits rows by key and returns the keys in sorted order.
// Each partition keeps its rows in input order.
func partitionRows[T any](rows []T, key func(T) entityKey) ([]entityKey, map[entityKey][]T) {
	groups := make(map[entityKey][]T)
	for _, r := range rows {
		k := key(r)
		groups[k] = append(groups[k], r)
	}
	keys := make([]entityKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys, groups
}

func observationKey(byPartition bool) func(domain.Observation) entityKey {
	return func(o domain.Observation) entityKey {
		k := entityKey{entity: o.EntityID}
		if byPartition {
			k.partition = o.Partition
		}
		return k
	}
}
