package postgres

import (
	"testing"
	"time"

	"github.com/drfirst/rxinsight/internal/domain/record"
)

func TestCreatedAt(t *testing.T) {
	want := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)

	got := createdAt(record.Raw{"uploadedAt": "2025-02-03T04:05:06Z"})
	if got == nil || !got.Equal(want) {
		t.Errorf("uploadedAt: got %v, want %v", got, want)
	}

	got = createdAt(record.Raw{"createdAt": map[string]interface{}{"seconds": float64(want.Unix())}})
	if got == nil || !got.Equal(want) {
		t.Errorf("seconds struct: got %v, want %v", got, want)
	}

	if got := createdAt(record.Raw{"createdAt": "not a date"}); got != nil {
		t.Errorf("invalid: got %v, want nil", got)
	}
}

func TestDecode(t *testing.T) {
	doc, err := decode([]byte(`{"id":"rx-1","extractedData":{"symptoms":["fever"]}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	rec := record.Normalize(doc)
	if rec.ID != "rx-1" || len(rec.Symptoms) != 1 {
		t.Errorf("record = %+v", rec)
	}

	if doc, err := decode([]byte(`null`)); err != nil || doc == nil {
		t.Errorf("null document: %v, %v", doc, err)
	}
	if _, err := decode([]byte(`[1,2]`)); err == nil {
		t.Error("expected error for array document")
	}
}
