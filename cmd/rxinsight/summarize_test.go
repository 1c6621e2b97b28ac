package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/drfirst/rxinsight/internal/analytics"
	"github.com/drfirst/rxinsight/internal/domain/record"
)

var now = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func fixture() []record.Raw {
	return []record.Raw{
		{"id": "a", "patientId": "p1", "createdAt": "2025-06-01T10:00:00Z", "medications": []interface{}{"Paracetamol"}},
		{"id": "a", "patientId": "p1", "createdAt": "2025-06-01T10:00:00Z", "medications": []interface{}{"Paracetamol"}},
		{"id": "b", "patientId": "p2", "createdAt": "2025-06-10T10:00:00Z", "medications": []interface{}{"Paracetamol", "Ibuprofen"}},
	}
}

func TestSummarize_DeduplicatesBeforeCounting(t *testing.T) {
	agg := analytics.NewAggregator(analytics.DefaultConfig())
	out, err := summarize(agg, fixture(), nil, summarizeOptions{Report: ReportMedications}, now)
	if err != nil {
		t.Fatal(err)
	}
	stats := out.(*analytics.MedicationStats)
	if len(stats.Medications) != 2 {
		t.Fatalf("medications = %+v", stats.Medications)
	}
	if stats.Medications[0] != (analytics.NamedCount{Name: "paracetamol", Count: 2}) {
		t.Errorf("top medication = %+v", stats.Medications[0])
	}
}

func TestSummarize_SummaryRange(t *testing.T) {
	agg := analytics.NewAggregator(analytics.DefaultConfig())
	out, err := summarize(agg, fixture(), nil, summarizeOptions{
		Report: ReportSummary,
		From:   "2025-06-01",
		To:     "2025-06-01",
	}, now)
	if err != nil {
		t.Fatal(err)
	}
	if s := out.(*analytics.Summary); s.TotalPrescriptions != 1 || s.UniquePatients != 1 {
		t.Errorf("summary = %+v", s)
	}
}

func TestSummarize_RejectsBadInput(t *testing.T) {
	agg := analytics.NewAggregator(analytics.DefaultConfig())
	cases := []summarizeOptions{
		{Report: "histogram"},
		{Report: ReportSummary, From: "yesterday"},
		{Report: ReportSummary, From: "2025-06-10", To: "2025-06-01"},
	}
	for _, opts := range cases {
		if _, err := summarize(agg, fixture(), nil, opts, now); err == nil {
			t.Errorf("expected error for %+v", opts)
		}
	}
}

func TestSummarize_Dashboard(t *testing.T) {
	agg := analytics.NewAggregator(analytics.DefaultConfig())
	users := []record.Raw{{"id": "p1", "role": "patient"}, {"id": "d1", "role": "doctor"}}
	out, err := summarize(agg, fixture(), users, summarizeOptions{Report: ReportDashboard}, now)
	if err != nil {
		t.Fatal(err)
	}
	d := out.(*analytics.Dashboard)
	if d.Overview.TotalPrescriptions != 2 || d.Overview.TotalPatients != 1 || d.Overview.TotalDoctors != 1 {
		t.Errorf("overview = %+v", d.Overview)
	}
}

func TestReadDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	if err := os.WriteFile(path, []byte(`[{"id":"a","symptoms":["fever"]},{"id":"b"}]`), 0o600); err != nil {
		t.Fatal(err)
	}
	docs, err := readDocuments(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 || docs[0]["id"] != "a" {
		t.Errorf("docs = %+v", docs)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(bad, []byte(`{"id":"a"}`), 0o600)
	if _, err := readDocuments(bad); err == nil {
		t.Error("expected error for non-array file")
	}
}

type memoryStore struct {
	records map[string]record.Raw
	users   map[string]record.Raw
	fail    error
}

func (m *memoryStore) UpsertRecord(_ context.Context, id string, doc record.Raw) error {
	if m.fail != nil {
		return m.fail
	}
	m.records[id] = doc
	return nil
}

func (m *memoryStore) UpsertUser(_ context.Context, id string, doc record.Raw) error {
	if m.fail != nil {
		return m.fail
	}
	m.users[id] = doc
	return nil
}

func TestImportDocuments(t *testing.T) {
	store := &memoryStore{records: map[string]record.Raw{}, users: map[string]record.Raw{}}
	docs := []record.Raw{{"id": "a"}, {"_id": "b"}, {"name": "no id"}}

	n, skipped, err := importDocuments(context.Background(), store, KindUsers, docs)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || skipped != 1 {
		t.Errorf("imported %d skipped %d", n, skipped)
	}
	if len(store.users) != 2 || len(store.records) != 0 {
		t.Errorf("users = %d records = %d", len(store.users), len(store.records))
	}

	store.fail = errors.New("down")
	if _, _, err := importDocuments(context.Background(), store, KindRecords, docs); !errors.Is(err, store.fail) {
		t.Errorf("err = %v", err)
	}
}
