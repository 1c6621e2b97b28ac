package analytics

import (
	"testing"
	"time"

	"github.com/drfirst/rxinsight/internal/domain/record"
)

func at(t time.Time, symptoms ...string) record.Record {
	return record.Record{CreatedAt: t, HasTimestamp: true, Symptoms: symptoms}
}

func TestMonthlySeries_Labels(t *testing.T) {
	now := time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)
	got := MonthlySeries(nil, now, 12, time.UTC, Always)

	if len(got) != 12 {
		t.Fatalf("len = %d, want 12", len(got))
	}
	if got[0].Label != "Apr 24" || got[0].FullLabel != "April 2024" {
		t.Errorf("first = %q / %q", got[0].Label, got[0].FullLabel)
	}
	if got[11].Label != "Mar 25" || got[11].FullLabel != "March 2025" {
		t.Errorf("last = %q / %q", got[11].Label, got[11].FullLabel)
	}
	for _, b := range got {
		if b.Count != 0 {
			t.Errorf("bucket %s count = %d, want 0", b.Label, b.Count)
		}
	}
}

func TestMonthlySeries_CountsMatchingRecords(t *testing.T) {
	now := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
	records := []record.Record{
		at(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), "High Fever"),
		at(time.Date(2025, time.February, 28, 23, 59, 59, 0, time.UTC), "body temperature"),
		at(time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC), "cough"),
		at(time.Date(2023, time.January, 10, 0, 0, 0, 0, time.UTC), "fever"),
		{Symptoms: []string{"fever"}},
	}

	got := MonthlySeries(records, now, 12, time.UTC, MentionsAny("fever", "temperature", "pyrexia"))
	if got[11].Count != 1 {
		t.Errorf("March = %d, want 1", got[11].Count)
	}
	if got[10].Count != 1 {
		t.Errorf("February = %d, want 1", got[10].Count)
	}
	total := 0
	for _, b := range got {
		total += b.Count
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
}

func TestMonthlySeries_MonthEndInclusive(t *testing.T) {
	now := time.Date(2025, time.January, 20, 0, 0, 0, 0, time.UTC)
	rec := at(time.Date(2024, time.December, 31, 23, 30, 0, 0, time.UTC))
	got := MonthlySeries([]record.Record{rec}, now, 2, time.UTC, Always)
	if got[0].Count != 1 || got[1].Count != 0 {
		t.Errorf("counts = %d,%d; want 1,0", got[0].Count, got[1].Count)
	}
}

func TestMonthlySeries_ZeroLength(t *testing.T) {
	if got := MonthlySeries(nil, time.Now(), 0, nil, Always); len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestDailySeries(t *testing.T) {
	now := time.Date(2025, time.March, 2, 12, 0, 0, 0, time.UTC)
	records := []record.Record{
		at(time.Date(2025, time.March, 2, 1, 0, 0, 0, time.UTC)),
		at(time.Date(2025, time.March, 2, 23, 0, 0, 0, time.UTC)),
		at(time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)),
		at(time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)),
	}

	got := DailySeries(records, now, 30, time.UTC, Always)
	if len(got) != 30 {
		t.Fatalf("len = %d, want 30", len(got))
	}
	if got[0].Label != "2025-02-01" || got[29].Label != "2025-03-02" {
		t.Errorf("range = %s..%s", got[0].Label, got[29].Label)
	}
	if got[29].Count != 2 {
		t.Errorf("today = %d, want 2", got[29].Count)
	}
	if got[0].Count != 1 {
		t.Errorf("first day = %d, want 1", got[0].Count)
	}
}

func TestDailySeries_AcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	now := time.Date(2025, time.March, 12, 12, 0, 0, 0, loc)
	rec := at(time.Date(2025, time.March, 10, 8, 0, 0, 0, loc))

	got := DailySeries([]record.Record{rec}, now, 5, loc, Always)
	for _, b := range got {
		want := 0
		if b.Label == "2025-03-10" {
			want = 1
		}
		if b.Count != want {
			t.Errorf("%s count = %d, want %d", b.Label, b.Count, want)
		}
	}
}

func TestMentionsAny(t *testing.T) {
	pred := MentionsAny("fever", " ", "Pyrexia")
	if !pred(record.Record{Symptoms: []string{"mild PYREXIA"}}) {
		t.Error("expected pyrexia match")
	}
	if pred(record.Record{Symptoms: []string{"cough"}}) {
		t.Error("unexpected match")
	}
	if pred(record.Record{}) {
		t.Error("unexpected match on empty symptoms")
	}
}

func TestParseBound(t *testing.T) {
	if b, err := ParseBound("", false); err != nil || b != nil {
		t.Fatalf("empty bound = %v, %v", b, err)
	}

	from, err := ParseBound("2025-03-01", false)
	if err != nil {
		t.Fatal(err)
	}
	if !from.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("from = %v", from)
	}

	to, err := ParseBound("2025-03-01", true)
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2025, 3, 1, 23, 59, 59, 999999999, time.UTC); !to.Equal(want) {
		t.Errorf("to = %v, want %v", to, want)
	}

	instant, err := ParseBound("2025-03-01T10:00:00Z", true)
	if err != nil {
		t.Fatal(err)
	}
	if instant.Hour() != 10 {
		t.Errorf("instant = %v", instant)
	}

	if _, err := ParseBound("March 1st", false); err == nil {
		t.Error("expected error for free-form date")
	}
}
