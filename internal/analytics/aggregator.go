package analytics

import (
	"sort"
	"time"

	"github.com/drfirst/rxinsight/internal/domain/record"
)

// FeverTrendPoint is one month of the fever trend.
type FeverTrendPoint struct {
	Month     string `json:"month"`
	Patients  int    `json:"patients"`
	FullMonth string `json:"fullMonth"`
}

// DailyCount is one day of the prescription series.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Dashboard is the government analytics view.
type Dashboard struct {
	Overview        Overview          `json:"overview"`
	SymptomsData    []SymptomCount    `json:"symptomsData"`
	MedicationsData []MedicationCount `json:"medicationsData"`
	FeverTrends     []FeverTrendPoint `json:"feverTrends"`
	ClinicsData     []ClinicDoctors   `json:"clinicsData"`
	GeneratedAt     time.Time         `json:"generatedAt"`
}

// Summary is the date-filtered prescription summary.
type Summary struct {
	TotalPrescriptions      int           `json:"totalPrescriptions"`
	UniquePatients          int           `json:"uniquePatients"`
	TopClinics              []ClinicCount `json:"topClinics"`
	PrescriptionsTimeSeries []DailyCount  `json:"prescriptionsTimeSeries"`
}

// MedicationStats lists medications across every medication field.
type MedicationStats struct {
	Medications []NamedCount `json:"medications"`
}

// LabStats maps each requested lab name to its statistics.
type LabStats struct {
	Labs map[string]LabStat `json:"labs"`
}

// HistoryEntry is one prescription in a patient's timeline.
type HistoryEntry struct {
	ID          string   `json:"id"`
	Date        string   `json:"date"`
	Doctor      string   `json:"doctor"`
	Symptoms    []string `json:"symptoms"`
	Diagnoses   []string `json:"diagnoses"`
	Medications []string `json:"medications"`
	Notes       string   `json:"notes"`
}

// PatientHistory is the per-patient digest behind the health summary.
type PatientHistory struct {
	SubjectID      string            `json:"subjectId"`
	Prescriptions  int               `json:"prescriptions"`
	Entries        []HistoryEntry    `json:"entries"`
	TopSymptoms    []SymptomCount    `json:"topSymptoms"`
	TopMedications []MedicationCount `json:"topMedications"`
}

// Aggregator builds summaries from normalized records. It holds no state
// besides its configuration and is safe for concurrent use.
type Aggregator struct {
	cfg Config
}

// NewAggregator creates an aggregator; zero fields of cfg take defaults.
func NewAggregator(cfg Config) *Aggregator {
	return &Aggregator{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (a *Aggregator) Config() Config { return a.cfg }

// Dashboard builds the government analytics view.
func (a *Aggregator) Dashboard(records []record.Record, users []record.User, now time.Time) *Dashboard {
	months := MonthlySeries(records, now, a.cfg.TrendMonths, a.cfg.Location, MentionsAny(a.cfg.FeverTerms...))
	trend := make([]FeverTrendPoint, len(months))
	for i, b := range months {
		trend[i] = FeverTrendPoint{Month: b.Label, Patients: b.Count, FullMonth: b.FullLabel}
	}

	return &Dashboard{
		Overview:        ComputeOverview(records, users),
		SymptomsData:    CountSymptoms(records, a.cfg.TopSymptoms),
		MedicationsData: CountMedications(records, a.cfg.TopMedications),
		FeverTrends:     trend,
		ClinicsData:     ClinicsByDoctors(users),
		GeneratedAt:     now.UTC(),
	}
}

// Summary counts prescriptions uploaded between from and to, both inclusive
// and both optional. Records without a timestamp are excluded.
func (a *Aggregator) Summary(records []record.Record, from, to *time.Time, now time.Time) *Summary {
	filtered := make([]record.Record, 0, len(records))
	for _, rec := range records {
		if !rec.HasTimestamp {
			continue
		}
		if from != nil && rec.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && rec.CreatedAt.After(*to) {
			continue
		}
		filtered = append(filtered, rec)
	}

	days := DailySeries(filtered, now, a.cfg.SummaryDays, a.cfg.Location, Always)
	series := make([]DailyCount, len(days))
	for i, b := range days {
		series[i] = DailyCount{Date: b.Label, Count: b.Count}
	}

	return &Summary{
		TotalPrescriptions:      len(filtered),
		UniquePatients:          len(distinctSubjects(filtered, true)),
		TopClinics:              TopClinics(filtered, a.cfg.TopClinics),
		PrescriptionsTimeSeries: series,
	}
}

// MedicationStats ranks medications from every medication field.
func (a *Aggregator) MedicationStats(records []record.Record) *MedicationStats {
	return &MedicationStats{Medications: CountMedicationsWide(records, a.cfg.TopMedicationsWide)}
}

// LabStats summarizes the given labs, or the configured ones when no
// non-blank name is given.
func (a *Aggregator) LabStats(records []record.Record, labs []string) *LabStats {
	labs = NonBlank(labs)
	if len(labs) == 0 {
		labs = a.cfg.InterestingLabs
	}
	return &LabStats{Labs: ComputeLabStats(records, labs, a.cfg.LabSampleCap)}
}

// PatientHistory builds a newest-first timeline of one subject's records.
func (a *Aggregator) PatientHistory(subjectID string, records []record.Record) *PatientHistory {
	sorted := make([]record.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].HasTimestamp != sorted[j].HasTimestamp {
			return sorted[i].HasTimestamp
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	entries := make([]HistoryEntry, 0, len(sorted))
	for _, rec := range sorted {
		date := rec.Date
		if date == "" && rec.HasTimestamp {
			date = rec.CreatedAt.In(a.cfg.Location).Format("2006-01-02")
		}
		doctor := rec.DoctorName
		if doctor == "" {
			doctor = "Unknown Doctor"
		}
		entries = append(entries, HistoryEntry{
			ID:          rec.ID,
			Date:        date,
			Doctor:      doctor,
			Symptoms:    rec.Symptoms,
			Diagnoses:   rec.Diagnoses,
			Medications: rec.Medications,
			Notes:       rec.Notes,
		})
	}

	return &PatientHistory{
		SubjectID:      subjectID,
		Prescriptions:  len(records),
		Entries:        entries,
		TopSymptoms:    CountSymptoms(records, a.cfg.TopSymptoms),
		TopMedications: CountMedications(records, a.cfg.TopMedications),
	}
}
