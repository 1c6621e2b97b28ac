package analytics

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/drfirst/rxinsight/internal/domain/record"
)

var (
	nonNumeric   = regexp.MustCompile(`[^0-9.\-]`)
	firstDecimal = regexp.MustCompile(`-?\d+(\.\d+)?`)
)

// ParseFirstNumber extracts the first signed decimal from free text such as
// "98.6°F" or "13,5 g/dL". Commas are read as decimal separators. Compound
// readings keep only their first number: "120/80 mmHg" yields 120.
// ok is false when the text holds no number.
func ParseFirstNumber(s string) (v float64, ok bool) {
	if s == "" {
		return 0, false
	}
	cleaned := nonNumeric.ReplaceAllString(strings.ReplaceAll(s, ",", "."), " ")
	m := firstDecimal.FindString(cleaned)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// LabStat summarizes the parsed readings of one lab.
type LabStat struct {
	Count   int       `json:"count"`
	Mean    *float64  `json:"mean"`
	Samples []float64 `json:"samples"`
}

// ComputeLabStats gathers, for every configured lab name, the readings whose
// key contains that name ignoring case. Blank names are ignored and
// unparsable readings are skipped. The mean covers every reading; Samples
// holds at most sampleCap of them.
func ComputeLabStats(records []record.Record, labs []string, sampleCap int) map[string]LabStat {
	labs = NonBlank(labs)
	values := make(map[string][]float64, len(labs))
	for _, lab := range labs {
		values[lab] = nil
	}

	for _, rec := range records {
		for _, lv := range rec.Labs {
			key := strings.ToLower(lv.Name)
			for _, lab := range labs {
				if !strings.Contains(key, strings.ToLower(lab)) {
					continue
				}
				if v, ok := ParseFirstNumber(lv.Value); ok {
					values[lab] = append(values[lab], v)
				}
			}
		}
	}

	out := make(map[string]LabStat, len(values))
	for lab, vals := range values {
		stat := LabStat{Count: len(vals), Samples: []float64{}}
		if len(vals) > 0 {
			var sum float64
			for _, v := range vals {
				sum += v
			}
			mean := sum / float64(len(vals))
			stat.Mean = &mean
			n := len(vals)
			if sampleCap >= 0 && n > sampleCap {
				n = sampleCap
			}
			stat.Samples = append(stat.Samples, vals[:n]...)
		}
		out[lab] = stat
	}
	return out
}

// NonBlank returns names without empty or whitespace-only entries.
func NonBlank(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) != "" {
			out = append(out, n)
		}
	}
	return out
}
