package burst

import "github.com/couchcryptid/storm-lightning-bursts/internal/domain"

// FilterEffective keeps rows where at least one level flagged a burst and
// nulls every threshold whose paired flag is false, so statistics over the
// result only see thresholds that fired. A storm with no bursts at all
// contributes no rows.
func FilterEffective(dets []Detection) []Detection {
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if !d.Bursts.Any() {
			continue
		}
		for _, l := range domain.Levels {
			if !d.Bursts[l] {
				d.Thresholds[l] = nil
			}
		}
		out = append(out, d)
	}
	return out
}
