// Package analytics derives summary statistics from prescription records.
//
// The aggregation functions are pure folds over normalized records; Service
// adds the storage reads around them.
package analytics

import (
	"time"

	"github.com/drfirst/rxinsight/internal/domain/record"
)

// Config holds the tunables of one aggregation pass.
type Config struct {
	// InterestingLabs are substrings matched case-insensitively against lab keys.
	InterestingLabs []string
	// FeverTerms select records for the fever trend.
	FeverTerms []string
	// TopSymptoms caps the ranked symptom list.
	TopSymptoms int
	// TopMedications caps the dashboard medication list.
	TopMedications int
	// TopMedicationsWide caps the medication stats list.
	TopMedicationsWide int
	// TopClinics caps the summary clinic list.
	TopClinics int
	// LabSampleCap caps the samples returned per lab; the mean uses every value.
	LabSampleCap int
	// TrendMonths is the length of the monthly fever series.
	TrendMonths int
	// SummaryDays is the length of the daily prescription series.
	SummaryDays int
	// DefaultClinic names doctors without a clinic or hospital.
	DefaultClinic string
	// Location decides calendar boundaries for buckets.
	Location *time.Location
}

// DefaultConfig returns the settings used by the dashboards.
func DefaultConfig() Config {
	return Config{
		InterestingLabs:    []string{"HbA1c", "Hemoglobin", "Cholesterol"},
		FeverTerms:         []string{"fever", "temperature", "pyrexia"},
		TopSymptoms:        10,
		TopMedications:     15,
		TopMedicationsWide: 50,
		TopClinics:         10,
		LabSampleCap:       100,
		TrendMonths:        12,
		SummaryDays:        30,
		DefaultClinic:      record.DefaultClinic,
		Location:           time.UTC,
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.InterestingLabs == nil {
		c.InterestingLabs = d.InterestingLabs
	}
	if c.FeverTerms == nil {
		c.FeverTerms = d.FeverTerms
	}
	if c.TopSymptoms <= 0 {
		c.TopSymptoms = d.TopSymptoms
	}
	if c.TopMedications <= 0 {
		c.TopMedications = d.TopMedications
	}
	if c.TopMedicationsWide <= 0 {
		c.TopMedicationsWide = d.TopMedicationsWide
	}
	if c.TopClinics <= 0 {
		c.TopClinics = d.TopClinics
	}
	if c.LabSampleCap <= 0 {
		c.LabSampleCap = d.LabSampleCap
	}
	if c.TrendMonths <= 0 {
		c.TrendMonths = d.TrendMonths
	}
	if c.SummaryDays <= 0 {
		c.SummaryDays = d.SummaryDays
	}
	if c.DefaultClinic == "" {
		c.DefaultClinic = d.DefaultClinic
	}
	if c.Location == nil {
		c.Location = d.Location
	}
	return c
}
