// Package record normalizes stored prescription documents.
//
// Documents are written by several producers (image OCR, voice transcription,
// manual entry) and disagree on field names: the patient reference may be
// patientId or userId, the extraction payload may carry medications under
// medications or prescriptions, and timestamps arrive either as ISO strings or
// as {seconds, nanoseconds} objects. Normalize resolves each logical field
// through an ordered list of accepted keys and never fails.
package record

import (
	"sort"
	"strings"
	"time"
)

// Raw is a stored document exactly as decoded from the database.
type Raw map[string]interface{}

// Unknown is the display name used for object entries without a usable name.
const Unknown = "Unknown"

// Accepted key names per logical field, in priority order.
var (
	IDKeys         = []string{"id", "_id"}
	SubjectKeys    = []string{"patientId", "userId"}
	TimestampKeys  = []string{"createdAt", "uploadedAt", "prescriptionDate"}
	SymptomKeys    = []string{"extractedData.symptoms", "symptoms"}
	MedicationKeys = []string{"extractedData.medications", "extractedData.prescriptions", "medications"}
	DiagnosisKeys  = []string{"diagnoses", "extractedData.diagnoses"}
	LabKeys        = []string{"extractedData.values", "extractedData.labValues", "labValues"}
	ClinicKeys     = []string{"extractedData.doctorInfo.clinic"}
	DoctorNameKeys = []string{"doctorName", "extractedData.doctorInfo.name"}
	symptomFields  = []string{"text", "name"}
	medicineFields = []string{"name", "medication"}
	labNameFields  = []string{"name", "test", "key"}
	labValueFields = []string{"value", "result"}
)

// LabValue is one free-text lab reading.
type LabValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Record is the canonical view of one prescription document.
type Record struct {
	ID             string     `json:"id"`
	SubjectID      string     `json:"subjectId,omitempty"`
	SubjectIDs     []string   `json:"-"`
	CreatedAt      time.Time  `json:"createdAt"`
	HasTimestamp   bool       `json:"-"`
	Date           string     `json:"date,omitempty"`
	DoctorName     string     `json:"doctorName,omitempty"`
	Clinic         string     `json:"clinic,omitempty"`
	Symptoms       []string   `json:"symptoms"`
	Diagnoses      []string   `json:"diagnoses"`
	Medications    []string   `json:"medications"`
	AllMedications []string   `json:"-"`
	Labs           []LabValue `json:"labs,omitempty"`
	Notes          string     `json:"notes,omitempty"`
}

// Normalize builds the canonical record. Missing or malformed fields come
// back empty.
func Normalize(raw Raw) Record {
	rec := Record{
		ID:             textAt(raw, IDKeys...),
		SubjectID:      textAt(raw, SubjectKeys...),
		SubjectIDs:     subjectIDs(raw),
		Date:           textAt(raw, "extractedData.date"),
		DoctorName:     textAt(raw, DoctorNameKeys...),
		Clinic:         strings.TrimSpace(textAt(raw, ClinicKeys...)),
		Symptoms:       displayNames(listAt(raw, SymptomKeys...), symptomFields),
		Diagnoses:      displayNames(listAt(raw, DiagnosisKeys...), symptomFields),
		Medications:    displayNames(listAt(raw, MedicationKeys...), medicineFields),
		AllMedications: allMedications(raw),
		Labs:           labValues(raw),
		Notes:          textAt(raw, "extractedData.notes"),
	}
	rec.CreatedAt, rec.HasTimestamp = timestamp(raw)
	return rec
}

// NormalizeAll normalizes every document in order.
func NormalizeAll(raws []Raw) []Record {
	out := make([]Record, 0, len(raws))
	for _, raw := range raws {
		out = append(out, Normalize(raw))
	}
	return out
}

// RawID returns the document identifier, or "" when it has none.
func RawID(raw Raw) string {
	return textAt(raw, IDKeys...)
}

func subjectIDs(raw Raw) []string {
	var ids []string
	for _, k := range SubjectKeys {
		id := textAt(raw, k)
		if id == "" || contains(ids, id) {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func timestamp(raw Raw) (time.Time, bool) {
	for _, k := range TimestampKeys {
		v, ok := valueAt(raw, k)
		if !ok {
			continue
		}
		if ts, ok := ParseTimestamp(v); ok {
			return ts, true
		}
	}
	return time.Time{}, false
}

// displayNames reads a list of bare strings or objects. Objects use the first
// non-empty field and fall back to Unknown; blank strings are dropped.
func displayNames(list []interface{}, fields []string) []string {
	out := make([]string, 0, len(list))
	for _, entry := range list {
		if entry == nil {
			continue
		}
		if m, ok := asMap(entry); ok {
			name := firstText(m, fields...)
			if name == "" {
				name = Unknown
			}
			out = append(out, name)
			continue
		}
		if s, ok := textOf(entry); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// allMedications collects medication names from every known location rather
// than the first one present. Entries without a name are skipped.
func allMedications(raw Raw) []string {
	var meds []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			meds = append(meds, s)
		}
	}
	for _, e := range listAt(raw, "extractedData.prescriptions") {
		if m, ok := asMap(e); ok {
			add(firstText(m, "medication", "name"))
		}
	}
	for _, e := range listAt(raw, "extractedData.medications") {
		if m, ok := asMap(e); ok {
			add(firstText(m, "name", "medication"))
		}
	}
	for _, e := range listAt(raw, "medications") {
		if m, ok := asMap(e); ok {
			add(firstText(m, "name"))
		} else if s, ok := e.(string); ok {
			add(s)
		}
	}
	return meds
}

func labValues(raw Raw) []LabValue {
	var labs []LabValue
	if m := mapAt(raw, LabKeys...); m != nil {
		for name, v := range m {
			s, _ := textOf(v)
			labs = append(labs, LabValue{Name: name, Value: s})
		}
	} else {
		for _, e := range listAt(raw, LabKeys...) {
			m, ok := asMap(e)
			if !ok {
				continue
			}
			name := firstText(m, labNameFields...)
			if name == "" {
				continue
			}
			labs = append(labs, LabValue{Name: name, Value: firstText(m, labValueFields...)})
		}
	}
	sort.SliceStable(labs, func(i, j int) bool { return labs[i].Name < labs[j].Name })
	return labs
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
