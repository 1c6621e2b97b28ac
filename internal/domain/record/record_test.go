package record

import (
	"reflect"
	"testing"
	"time"
)

func TestNormalize_SubjectPrefersPatientID(t *testing.T) {
	rec := Normalize(Raw{"id": "rx-1", "patientId": "p-1", "userId": "u-1"})
	if rec.SubjectID != "p-1" {
		t.Errorf("SubjectID = %q, want p-1", rec.SubjectID)
	}
	if !reflect.DeepEqual(rec.SubjectIDs, []string{"p-1", "u-1"}) {
		t.Errorf("SubjectIDs = %v", rec.SubjectIDs)
	}

	rec = Normalize(Raw{"id": "rx-2", "userId": "u-2"})
	if rec.SubjectID != "u-2" {
		t.Errorf("SubjectID = %q, want u-2", rec.SubjectID)
	}
}

func TestNormalize_EmptyDocument(t *testing.T) {
	rec := Normalize(Raw{})
	if rec.ID != "" || rec.SubjectID != "" || rec.HasTimestamp {
		t.Fatalf("expected empty record, got %+v", rec)
	}
	if len(rec.Symptoms) != 0 || len(rec.Medications) != 0 || len(rec.Labs) != 0 {
		t.Fatalf("expected no entries, got %+v", rec)
	}
}

func TestNormalize_SymptomEntries(t *testing.T) {
	raw := Raw{
		"extractedData": map[string]interface{}{
			"symptoms": []interface{}{
				"Fever",
				map[string]interface{}{"text": "dry cough"},
				map[string]interface{}{"name": "headache"},
				map[string]interface{}{"severity": "mild"},
				"   ",
				nil,
			},
		},
		"symptoms": []interface{}{"ignored"},
	}
	got := Normalize(raw).Symptoms
	want := []string{"Fever", "dry cough", "headache", Unknown}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Symptoms = %v, want %v", got, want)
	}
}

func TestNormalize_WrongShapeFallsThrough(t *testing.T) {
	raw := Raw{
		"extractedData": map[string]interface{}{"symptoms": "fever"},
		"symptoms":      []interface{}{"cough"},
	}
	got := Normalize(raw).Symptoms
	if !reflect.DeepEqual(got, []string{"cough"}) {
		t.Errorf("Symptoms = %v, want [cough]", got)
	}
}

func TestNormalize_NullExtractedData(t *testing.T) {
	raw := Raw{"extractedData": nil, "medications": []interface{}{"Paracetamol"}}
	got := Normalize(raw).Medications
	if !reflect.DeepEqual(got, []string{"Paracetamol"}) {
		t.Errorf("Medications = %v", got)
	}
}

func TestNormalize_MedicationAliases(t *testing.T) {
	raw := Raw{
		"extractedData": map[string]interface{}{
			"prescriptions": []interface{}{
				map[string]interface{}{"medication": "Amoxicillin", "dosage": "500mg"},
				map[string]interface{}{"name": "Ibuprofen"},
				map[string]interface{}{"dosage": "5ml"},
			},
		},
	}
	rec := Normalize(raw)
	if want := []string{"Amoxicillin", "Ibuprofen", Unknown}; !reflect.DeepEqual(rec.Medications, want) {
		t.Errorf("Medications = %v, want %v", rec.Medications, want)
	}
	if !reflect.DeepEqual(rec.AllMedications, []string{"Amoxicillin", "Ibuprofen"}) {
		t.Errorf("AllMedications = %v", rec.AllMedications)
	}
}

func TestNormalize_AllMedicationsUnion(t *testing.T) {
	raw := Raw{
		"extractedData": map[string]interface{}{
			"prescriptions": []interface{}{map[string]interface{}{"medication": " Metformin "}},
			"medications":   []interface{}{map[string]interface{}{"name": "Insulin"}},
		},
		"medications": []interface{}{"Aspirin", map[string]interface{}{"name": "Statin"}, ""},
	}
	got := Normalize(raw).AllMedications
	want := []string{"Metformin", "Insulin", "Aspirin", "Statin"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AllMedications = %v, want %v", got, want)
	}
}

func TestNormalize_Timestamps(t *testing.T) {
	want := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	cases := map[string]Raw{
		"iso string":      {"createdAt": "2025-03-14T09:30:00Z"},
		"seconds object":  {"uploadedAt": map[string]interface{}{"seconds": float64(want.Unix()), "nanoseconds": float64(0)}},
		"firestore json":  {"uploadedAt": map[string]interface{}{"_seconds": float64(want.Unix())}},
		"time value":      {"createdAt": want},
		"epoch millis":    {"prescriptionDate": float64(want.UnixMilli())},
		"bad then good":   {"createdAt": "not a date", "uploadedAt": "2025-03-14T09:30:00Z"},
		"offset timezone": {"createdAt": "2025-03-14T11:30:00+02:00"},
	}
	for name, raw := range cases {
		rec := Normalize(raw)
		if !rec.HasTimestamp {
			t.Errorf("%s: expected timestamp", name)
			continue
		}
		if !rec.CreatedAt.Equal(want) {
			t.Errorf("%s: CreatedAt = %v, want %v", name, rec.CreatedAt, want)
		}
	}

	if rec := Normalize(Raw{"createdAt": "yesterday"}); rec.HasTimestamp {
		t.Errorf("unparseable timestamp should be absent, got %v", rec.CreatedAt)
	}
}

func TestNormalize_LabValues(t *testing.T) {
	raw := Raw{
		"extractedData": map[string]interface{}{
			"values": map[string]interface{}{
				"Hemoglobin":      "13.5 g/dL",
				"Blood Pressure":  "120/80 mmHg",
				"HbA1c (percent)": float64(6.1),
			},
		},
	}
	got := Normalize(raw).Labs
	want := []LabValue{
		{Name: "Blood Pressure", Value: "120/80 mmHg"},
		{Name: "HbA1c (percent)", Value: "6.1"},
		{Name: "Hemoglobin", Value: "13.5 g/dL"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Labs = %v, want %v", got, want)
	}

	listed := Normalize(Raw{"labValues": []interface{}{
		map[string]interface{}{"name": "Cholesterol", "value": "190"},
		map[string]interface{}{"value": "orphan"},
	}}).Labs
	if !reflect.DeepEqual(listed, []LabValue{{Name: "Cholesterol", Value: "190"}}) {
		t.Errorf("listed Labs = %v", listed)
	}
}

func TestNormalize_DoctorAndClinic(t *testing.T) {
	raw := Raw{
		"extractedData": map[string]interface{}{
			"doctorInfo": map[string]interface{}{"name": "Dr. Rao", "clinic": " City Care "},
			"notes":      "review in 2 weeks",
		},
	}
	rec := Normalize(raw)
	if rec.DoctorName != "Dr. Rao" || rec.Clinic != "City Care" || rec.Notes != "review in 2 weeks" {
		t.Errorf("unexpected record %+v", rec)
	}
	if got := Normalize(Raw{"doctorName": "Dr. Sen", "extractedData": raw["extractedData"]}).DoctorName; got != "Dr. Sen" {
		t.Errorf("DoctorName = %q, want Dr. Sen", got)
	}
}

func TestNormalizeUser(t *testing.T) {
	u := NormalizeUser(Raw{"uid": "d-1", "role": "Doctor", "hospital": "St. Mary"}, "")
	if u.ID != "d-1" || u.Role != RoleDoctor || u.Clinic != "St. Mary" {
		t.Errorf("unexpected user %+v", u)
	}
	if u := NormalizeUser(Raw{"id": "d-2", "role": "doctor"}, ""); u.Clinic != DefaultClinic {
		t.Errorf("Clinic = %q, want %q", u.Clinic, DefaultClinic)
	}
	if u := NormalizeUser(Raw{"id": "d-3", "role": "doctor", "clinic": "A", "hospital": "B"}, "X"); u.Clinic != "A" {
		t.Errorf("Clinic = %q, want A", u.Clinic)
	}
}
