// Package domain models inner-core lightning time-bin data for tropical cyclones.
//
// # Data Source
//
// Each record is one 30-minute time bin for one storm. The upstream data
// pipeline joins lightning strokes inside the storm's inner core with the
// best-track intensity at that time and exports the result as a flat table
// (CSV or one JSON object per Kafka message). All values arrive as strings.
//
// # Conventions
//
// Storm codes:
//
//	"<BASIN>_<year><number>"  →  e.g. "ATL_202212"
//	The prefix before the first underscore is the basin code. Recognised basins
//	are ATL, EPAC, WPAC, IO, SHEM and CPAC. See [BasinFromEntityID].
//
// Lightning counts:
//
//	Non-negative integers. Analysis works on log1p(count) so that a zero-count
//	bin maps to 0 and the heavy right tail is compressed. Zero-count bins are
//	kept for display but never enter threshold computation.
//
// Current category:
//
//	Saffir-Simpson category "0"–"5". Bins below hurricane strength are tagged
//	"Unidentified" upstream; they are stored as "0". Any other code is rejected
//	with [InvalidCategoryError].
//
// Intensification category:
//
//	Five upstream labels are folded into three:
//
//	  Rapidly Weakening, Weakening       → Weakening
//	  Neutral                            → Neutral
//	  Intensifying, Rapidly Intensifying → Intensifying
//
// Pressure:
//
//	A pressure of 0 is a missing-value marker in the upstream data; it is
//	stored as nil while the rest of the row stays valid.
//
// # Burst Levels
//
// Three threshold methods (MAD, IQR, log-normal) each have a moderate and a
// strict tier, giving six [Level] values. Output columns are named
// burst_<method><tier> and <method><tier>_threshold, e.g. burst_iqr1 and
// iqr1_threshold.
package domain
