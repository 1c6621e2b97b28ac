package analytics

import (
	"github.com/drfirst/rxinsight/internal/domain/record"
)

// ClinicDoctors is a clinic with the number of registered doctors.
type ClinicDoctors struct {
	Clinic      string `json:"clinic"`
	DoctorCount int    `json:"doctorCount"`
}

// ClinicCount is a clinic with the number of prescriptions naming it.
type ClinicCount struct {
	Clinic string `json:"clinic"`
	Count  int    `json:"count"`
}

// ClinicsByDoctors groups doctor profiles by clinic, largest first.
func ClinicsByDoctors(users []record.User) []ClinicDoctors {
	c := newCounter()
	for _, u := range users {
		if u.Role == record.RoleDoctor {
			c.add(u.Clinic)
		}
	}
	ranked := c.ranked(0)
	out := make([]ClinicDoctors, 0, len(ranked))
	for _, t := range ranked {
		out = append(out, ClinicDoctors{Clinic: t.key, DoctorCount: t.count})
	}
	return out
}

// TopClinics ranks clinics by the prescriptions whose doctor info names them.
func TopClinics(records []record.Record, limit int) []ClinicCount {
	c := newCounter()
	for _, rec := range records {
		if rec.Clinic != "" {
			c.add(rec.Clinic)
		}
	}
	ranked := c.ranked(limit)
	out := make([]ClinicCount, 0, len(ranked))
	for _, t := range ranked {
		out = append(out, ClinicCount{Clinic: t.key, Count: t.count})
	}
	return out
}
