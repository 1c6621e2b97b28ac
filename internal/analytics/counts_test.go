package analytics

import (
	"reflect"
	"testing"

	"github.com/drfirst/rxinsight/internal/domain/record"
)

func symptoms(lists ...[]string) []record.Record {
	out := make([]record.Record, len(lists))
	for i, l := range lists {
		out[i] = record.Record{Symptoms: l}
	}
	return out
}

func TestCountSymptoms_CaseInsensitiveShares(t *testing.T) {
	records := symptoms([]string{"fever"}, []string{"Fever", "cough"}, []string{"cough"})

	got := CountSymptoms(records, 10)
	want := []SymptomCount{
		{Symptom: "Fever", Count: 2, Percentage: 50},
		{Symptom: "Cough", Count: 2, Percentage: 50},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CountSymptoms = %+v, want %+v", got, want)
	}
}

func TestCountSymptoms_LimitKeepsPercentagesOfAll(t *testing.T) {
	records := symptoms([]string{"a", "a", "b", "c"})

	got := CountSymptoms(records, 1)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Symptom != "A" || got[0].Count != 2 || got[0].Percentage != 50 {
		t.Errorf("top = %+v", got[0])
	}
}

func TestCountSymptoms_PercentagesSumToHundredWhenAllShown(t *testing.T) {
	records := symptoms([]string{"a", "b", "c", "d"}, []string{"a", "b", "c", "d"})
	sum := 0
	for _, s := range CountSymptoms(records, 10) {
		sum += s.Percentage
	}
	if sum != 100 {
		t.Errorf("percentage sum = %d, want 100", sum)
	}
}

func TestCountSymptoms_TiesKeepFirstSeenOrder(t *testing.T) {
	records := symptoms([]string{"rash", "nausea"}, []string{"nausea", "rash", "cold"})
	got := CountSymptoms(records, 0)
	names := []string{got[0].Symptom, got[1].Symptom, got[2].Symptom}
	if !reflect.DeepEqual(names, []string{"Rash", "Nausea", "Cold"}) {
		t.Errorf("order = %v", names)
	}
}

func TestCountSymptoms_Empty(t *testing.T) {
	if got := CountSymptoms(nil, 10); len(got) != 0 {
		t.Errorf("CountSymptoms(nil) = %v, want empty", got)
	}
}

func TestCountMedications(t *testing.T) {
	records := []record.Record{
		{Medications: []string{"Paracetamol", "amoxicillin"}},
		{Medications: []string{" paracetamol "}},
	}
	got := CountMedications(records, 15)
	want := []MedicationCount{
		{Medication: "Paracetamol", Count: 2},
		{Medication: "Amoxicillin", Count: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CountMedications = %+v, want %+v", got, want)
	}
}

func TestCountMedicationsWide_LowerCaseNames(t *testing.T) {
	records := []record.Record{
		{AllMedications: []string{"Metformin", "Insulin"}},
		{AllMedications: []string{"METFORMIN"}},
	}
	got := CountMedicationsWide(records, 1)
	want := []NamedCount{{Name: "metformin", Count: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CountMedicationsWide = %+v, want %+v", got, want)
	}
}

func TestCountMedications_NegativeLimitMeansAll(t *testing.T) {
	records := []record.Record{{Medications: []string{"a", "b", "c"}}}
	if got := CountMedications(records, -1); len(got) != 3 {
		t.Errorf("len = %d, want 3", len(got))
	}
}
