// Command genmock writes a reproducible synthetic time-bin table for local
// runs and tests. Every generated record is parsed with the domain package so
// the fixture is guaranteed to load.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/timebins.csv \
//	  -json-out data/timebins.json \
//	  -storms 24 -bins 48 -seed 7
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
)

var baseDate = time.Date(2022, time.August, 1, 0, 0, 0, 0, time.UTC)

const binWidth = 30 * time.Minute

var (
	shearQuads       = []string{"DL", "DR", "UL", "UR"}
	intensifications = []string{"Rapidly Weakening", "Weakening", "Neutral", "Intensifying", "Rapidly Intensifying"}
	categories       = []string{"Unidentified", "0", "1", "2", "3", "4", "5"}
	stormNames       = []string{"ALEX", "BONNIE", "COLIN", "DANIELLE", "EARL", "FIONA", "GASTON", "HERMINE", "IAN", "JULIA", "KAY", "LISA"}
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the CSV table")
	jsonOut := flag.String("json-out", "", "optional output path for the records as a JSON array")
	storms := flag.Int("storms", 24, "number of storms")
	bins := flag.Int("bins", 48, "time bins per storm")
	seed := flag.Uint64("seed", 7, "random seed")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *storms < 1 || *bins < 1 {
		return fmt.Errorf("-storms and -bins must be positive")
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	var records []domain.RawTimeBinRecord //nolint:prealloc // depends on flags
	for i := range *storms {
		records = append(records, generateStorm(rng, i, *bins)...)
	}

	var obs []domain.Observation
	for _, rec := range records {
		o, err := domain.ParseRecord(rec)
		if err != nil {
			return fmt.Errorf("generated record %s %s: %w", rec.StormCode, rec.TimeBin, err)
		}
		obs = append(obs, o)
	}

	if err := writeCSV(*out, records); err != nil {
		return fmt.Errorf("writing CSV: %w", err)
	}
	log.Printf("wrote %d records: %s", len(records), *out)

	if *jsonOut != "" {
		if err := writeJSON(*jsonOut, records); err != nil {
			return fmt.Errorf("writing JSON: %w", err)
		}
		log.Printf("wrote JSON fixture: %s", *jsonOut)
	}

	printStats(obs)
	return nil
}

// generateStorm produces one storm's bins across all four shear quadrants.
// Counts follow a log-normal background with occasional spikes; a few bins
// are empty.
func generateStorm(rng *rand.Rand, index, bins int) []domain.RawTimeBinRecord {
	basin := domain.Basins[index%len(domain.Basins)]
	code := fmt.Sprintf("%s_%d%02d", basin, 2018+index/len(stormNames)%5, index%len(stormNames)+1)
	name := stormNames[index%len(stormNames)]
	category := categories[rng.IntN(len(categories))]
	peakKnots := 30 + rng.Float64()*120
	background := 1 + rng.Float64()*3

	clock := clockwork.NewFakeClockAt(baseDate.Add(time.Duration(index) * 24 * time.Hour))
	out := make([]domain.RawTimeBinRecord, 0, bins*len(shearQuads))
	for b := range bins {
		// Intensity ramps up then decays over the storm's life.
		phase := math.Sin(math.Pi * float64(b+1) / float64(bins+1))
		knots := math.Round(peakKnots * (0.5 + 0.5*phase))
		pressure := "0"
		if rng.Float64() > 0.1 {
			pressure = strconv.FormatFloat(math.Round(1010-knots*0.6), 'f', -1, 64)
		}
		intensification := intensifications[rng.IntN(len(intensifications))]

		for _, quad := range shearQuads {
			count := 0
			if rng.Float64() > 0.15 {
				count = int(math.Exp(background + rng.NormFloat64()))
				if rng.Float64() < 0.04 {
					count *= 20 + rng.IntN(30)
				}
			}
			out = append(out, domain.RawTimeBinRecord{
				StormCode:       code,
				StormName:       name,
				TimeBin:         clock.Now().Format("2006-01-02 15:04"),
				LightningCount:  strconv.Itoa(count),
				Knots:           strconv.FormatFloat(knots, 'f', -1, 64),
				Pressure:        pressure,
				Category:        category,
				Intensification: intensification,
				ShearQuad:       quad,
			})
		}
		clock.Advance(binWidth)
	}
	return out
}

var csvHeader = []string{
	domain.ColumnStormCode, domain.ColumnStormName, domain.ColumnTimeBin, domain.ColumnLightningCount,
	domain.ColumnKnots, domain.ColumnPressure, domain.ColumnCategory, domain.ColumnIntensification, domain.ColumnShearQuad,
}

func writeCSV(path string, records []domain.RawTimeBinRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return err
	}
	for _, r := range records {
		row := []string{r.StormCode, r.StormName, r.TimeBin, r.LightningCount, r.Knots, r.Pressure, r.Category, r.Intensification, r.ShearQuad}
		if err := w.Write(row); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func printStats(obs []domain.Observation) {
	byBasin := map[domain.Basin]int{}
	byCategory := map[string]int{}
	eligible, zeros := 0, 0
	for _, o := range obs {
		byBasin[o.Basin]++
		byCategory[o.Category]++
		switch {
		case o.Count == 0:
			zeros++
		case o.Knots >= 40:
			eligible++
		}
	}

	log.Printf("eligible bins (non-zero, >= 40 kt): %d, empty bins: %d", eligible, zeros)
	for _, b := range domain.Basins {
		if n := byBasin[b]; n > 0 {
			log.Printf("  basin %-5s %d", b, n)
		}
	}
	for _, c := range []string{"0", "1", "2", "3", "4", "5"} {
		if n := byCategory[c]; n > 0 {
			log.Printf("  category %s %d", c, n)
		}
	}
}
