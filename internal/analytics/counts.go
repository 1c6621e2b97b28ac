package analytics

import (
	"math"

	"github.com/drfirst/rxinsight/internal/domain/record"
)

// SymptomCount is one row of the ranked symptom list.
type SymptomCount struct {
	Symptom    string `json:"symptom"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// MedicationCount is one row of the dashboard medication list.
type MedicationCount struct {
	Medication string `json:"medication"`
	Count      int    `json:"count"`
}

// NamedCount is one row of the medication stats list.
type NamedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// CountSymptoms ranks symptoms across all records. Percentages are shares of
// all symptom occurrences, including those that fall outside the top list.
func CountSymptoms(records []record.Record, limit int) []SymptomCount {
	c := newCounter()
	for _, rec := range records {
		for _, s := range rec.Symptoms {
			c.add(groupKey(s))
		}
	}

	ranked := c.ranked(limit)
	out := make([]SymptomCount, 0, len(ranked))
	for _, t := range ranked {
		pct := 0
		if c.total > 0 {
			pct = int(math.Round(float64(t.count) / float64(c.total) * 100))
		}
		out = append(out, SymptomCount{Symptom: capitalize(t.key), Count: t.count, Percentage: pct})
	}
	return out
}

// CountMedications ranks the medications found under the first present
// medication field of each record.
func CountMedications(records []record.Record, limit int) []MedicationCount {
	c := newCounter()
	for _, rec := range records {
		for _, m := range rec.Medications {
			c.add(groupKey(m))
		}
	}

	ranked := c.ranked(limit)
	out := make([]MedicationCount, 0, len(ranked))
	for _, t := range ranked {
		out = append(out, MedicationCount{Medication: capitalize(t.key), Count: t.count})
	}
	return out
}

// CountMedicationsWide ranks medications gathered from every medication field
// of each record. Names are reported as lower-case keys.
func CountMedicationsWide(records []record.Record, limit int) []NamedCount {
	c := newCounter()
	for _, rec := range records {
		for _, m := range rec.AllMedications {
			c.add(groupKey(m))
		}
	}

	ranked := c.ranked(limit)
	out := make([]NamedCount, 0, len(ranked))
	for _, t := range ranked {
		out = append(out, NamedCount{Name: t.key, Count: t.count})
	}
	return out
}
