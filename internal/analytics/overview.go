package analytics

import (
	"math"

	"github.com/drfirst/rxinsight/internal/domain/record"
)

// Overview holds the headline counts of the dashboard.
type Overview struct {
	TotalPatients              int     `json:"totalPatients"`
	TotalDoctors               int     `json:"totalDoctors"`
	TotalPrescriptions         int     `json:"totalPrescriptions"`
	ActivePatients             int     `json:"activePatients"`
	AvgPrescriptionsPerPatient float64 `json:"avgPrescriptionsPerPatient"`
}

// ComputeOverview counts users by role and records by subject. The average is
// rounded to one decimal and is 0 when there are no patients.
func ComputeOverview(records []record.Record, users []record.User) Overview {
	var o Overview
	for _, u := range users {
		switch u.Role {
		case record.RolePatient:
			o.TotalPatients++
		case record.RoleDoctor:
			o.TotalDoctors++
		}
	}

	o.TotalPrescriptions = len(records)
	o.ActivePatients = len(distinctSubjects(records, false))
	if o.TotalPatients > 0 {
		o.AvgPrescriptionsPerPatient = math.Round(float64(o.TotalPrescriptions)/float64(o.TotalPatients)*10) / 10
	}
	return o
}

// distinctSubjects collects subject identifiers; with every set, all alias
// fields of a record count, otherwise only the preferred one.
func distinctSubjects(records []record.Record, every bool) map[string]struct{} {
	set := make(map[string]struct{})
	for _, rec := range records {
		if every {
			for _, id := range rec.SubjectIDs {
				set[id] = struct{}{}
			}
			continue
		}
		if rec.SubjectID != "" {
			set[rec.SubjectID] = struct{}{}
		}
	}
	return set
}
