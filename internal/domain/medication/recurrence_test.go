package medication

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func baseOccurrence(rule Rule, start, end time.Time) Occurrence {
	seriesID := uuid.New()
	return Occurrence{
		FamilyGroup:    "rossi",
		Title:          DoseTitle("Tachipirina"),
		MedicationName: "Tachipirina",
		Dose:           "500mg",
		Start:          start,
		End:            end,
		SeriesID:       &seriesID,
		RepetitionRule: rule,
		CreatedBy:      "user-1",
	}
}

func TestGenerateSeries_DailyWeek(t *testing.T) {
	start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	until := time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)

	rows := GenerateSeries(baseOccurrence(RuleDaily, start, end), until, 1000)

	if len(rows) != 7 {
		t.Fatalf("expected 7 occurrences, got %d", len(rows))
	}
	for i, o := range rows {
		want := start.AddDate(0, 0, i)
		if !o.Start.Equal(want) {
			t.Errorf("occurrence %d: expected start %v, got %v", i, want, o.Start)
		}
	}
}

func TestGenerateSeries_WeeklyInclusiveEnd(t *testing.T) {
	// The final step lands exactly on the until date; the time of day
	// carried by the series must not exclude it.
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	until := time.Date(2025, 3, 24, 0, 0, 0, 0, time.UTC)

	rows := GenerateSeries(baseOccurrence(RuleWeekly, start, end), until, 1000)

	if len(rows) != 4 {
		t.Fatalf("expected 4 occurrences, got %d", len(rows))
	}
	last := rows[len(rows)-1]
	wantStart := time.Date(2025, 3, 24, 9, 0, 0, 0, time.UTC)
	if !last.Start.Equal(wantStart) {
		t.Errorf("expected last start %v, got %v", wantStart, last.Start)
	}
	wantEnd := wantStart.Add(30 * time.Minute)
	if !last.End.Equal(wantEnd) {
		t.Errorf("expected last end %v, got %v", wantEnd, last.End)
	}
}

func TestGenerateSeries_DurationPreserved(t *testing.T) {
	start := time.Date(2025, 6, 1, 22, 30, 0, 0, time.UTC)
	end := start.Add(45 * time.Minute)
	until := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	rows := GenerateSeries(baseOccurrence(RuleDaily, start, end), until, 1000)

	if len(rows) == 0 {
		t.Fatal("expected occurrences")
	}
	for i, o := range rows {
		if o.Duration() != 45*time.Minute {
			t.Errorf("occurrence %d: expected duration 45m, got %v", i, o.Duration())
		}
	}
}

func TestGenerateSeries_NoRule(t *testing.T) {
	start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	until := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	if rows := GenerateSeries(baseOccurrence(RuleNone, start, start.Add(time.Hour)), until, 1000); rows != nil {
		t.Errorf("expected nil for rule none, got %d rows", len(rows))
	}
	if rows := GenerateSeries(baseOccurrence(Rule("fortnightly"), start, start.Add(time.Hour)), until, 1000); rows != nil {
		t.Errorf("expected nil for unknown rule, got %d rows", len(rows))
	}
}

func TestGenerateSeries_Cap(t *testing.T) {
	start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	until := start.AddDate(10, 0, 0)

	rows := GenerateSeries(baseOccurrence(RuleDaily, start, start.Add(time.Hour)), until, 1000)

	if len(rows) != 1000 {
		t.Fatalf("expected generation capped at 1000, got %d", len(rows))
	}
}

func TestGenerateSeries_MonthlyOverflow(t *testing.T) {
	// Jan 31 has no sibling day in February; the step normalizes
	// forward into March.
	start := time.Date(2025, 1, 31, 8, 0, 0, 0, time.UTC)
	until := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	rows := GenerateSeries(baseOccurrence(RuleMonthly, start, start.Add(time.Hour)), until, 1000)

	if len(rows) != 2 {
		t.Fatalf("expected 2 occurrences, got %d", len(rows))
	}
	want := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	if !rows[1].Start.Equal(want) {
		t.Errorf("expected second start %v, got %v", want, rows[1].Start)
	}
}

func TestGenerateSeries_AnnualLeapDay(t *testing.T) {
	start := time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC)
	until := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	rows := GenerateSeries(baseOccurrence(RuleAnnually, start, start.Add(time.Hour)), until, 1000)

	if len(rows) != 2 {
		t.Fatalf("expected 2 occurrences, got %d", len(rows))
	}
	want := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	if !rows[1].Start.Equal(want) {
		t.Errorf("expected second start %v, got %v", want, rows[1].Start)
	}
}

func TestGenerateSeries_SharedSeriesID(t *testing.T) {
	start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	until := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	base := baseOccurrence(RuleDaily, start, start.Add(time.Hour))

	rows := GenerateSeries(base, until, 1000)

	for i, o := range rows {
		if o.SeriesID == nil || *o.SeriesID != *base.SeriesID {
			t.Errorf("occurrence %d: series id not carried over", i)
		}
		if o.RepetitionRule != RuleDaily {
			t.Errorf("occurrence %d: expected rule daily, got %q", i, o.RepetitionRule)
		}
	}
}

func TestComputeNotification_LeadHours(t *testing.T) {
	start := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	recipients := []uuid.UUID{uuid.New()}

	notifyAt, got := ComputeNotification(start, 2, true, recipients)

	if notifyAt == nil {
		t.Fatal("expected a notify time")
	}
	want := time.Date(2025, 1, 10, 6, 0, 0, 0, time.UTC)
	if !notifyAt.Equal(want) {
		t.Errorf("expected notify at %v, got %v", want, notifyAt)
	}
	if len(got) != 1 || got[0] != recipients[0] {
		t.Errorf("expected recipients preserved, got %v", got)
	}
}

func TestComputeNotification_Disabled(t *testing.T) {
	start := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

	notifyAt, recipients := ComputeNotification(start, 2, false, []uuid.UUID{uuid.New()})

	if notifyAt != nil {
		t.Errorf("expected no notify time, got %v", notifyAt)
	}
	if recipients == nil || len(recipients) != 0 {
		t.Errorf("expected empty recipient set, got %v", recipients)
	}
}

func TestComputeNotification_NegativeLeadClamped(t *testing.T) {
	start := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

	notifyAt, _ := ComputeNotification(start, -3, true, nil)

	if notifyAt == nil {
		t.Fatal("expected a notify time")
	}
	if !notifyAt.Equal(start) {
		t.Errorf("expected negative lead clamped to start %v, got %v", start, notifyAt)
	}
}

func TestComputeNotification_NilRecipients(t *testing.T) {
	start := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

	_, recipients := ComputeNotification(start, 1, true, nil)

	if recipients == nil {
		t.Fatal("expected non-nil recipient slice")
	}
	if len(recipients) != 0 {
		t.Errorf("expected empty recipient set, got %v", recipients)
	}
}
