package medication

import (
	"time"

	"github.com/google/uuid"
)

// NewSeriesID mints the grouping key for one recurring request. A
// series edit always allocates a fresh id instead of reusing the old
// one, so rows still referencing a stale id after a concurrent edit
// are detectable as orphans.
func NewSeriesID() uuid.UUID {
	return uuid.New()
}

// GenerateSeries expands a recurring request into the concrete
// occurrences of one series. base supplies every field except the
// timestamps; only Start and End vary between the returned values.
//
// until is inclusive: an occurrence landing exactly on that date is
// produced. The exclusive upper bound is midnight of the following
// day, so the comparison behaves date-only regardless of the
// time-of-day carried by base.Start.
//
// Generation stops after maxOccurrences rows. The cap truncates
// silently: it is a safety guard against a mis-set end date years out,
// not an error condition.
//
// Pure function, deterministic given its inputs.
func GenerateSeries(base Occurrence, until time.Time, maxOccurrences int) []Occurrence {
	if base.RepetitionRule == RuleNone || !base.RepetitionRule.Valid() {
		return nil
	}

	duration := base.End.Sub(base.Start)
	bound := time.Date(until.Year(), until.Month(), until.Day(), 0, 0, 0, 0, base.Start.Location()).AddDate(0, 0, 1)

	var out []Occurrence
	for start := base.Start; start.Before(bound) && len(out) < maxOccurrences; start = base.RepetitionRule.Step(start) {
		occ := base
		occ.Start = start
		occ.End = start.Add(duration)
		out = append(out, occ)
	}
	return out
}

// ComputeNotification derives the notify-at timestamp and recipient set
// for one occurrence. Disabled reminders yield no timestamp and no
// recipients. A negative lead time is clamped to zero; the original
// behavior of scheduling the reminder after the dose was a bug.
//
// An empty recipient list means "notify the author only" — that policy
// belongs to the dispatch collaborator, not to this calculator.
func ComputeNotification(start time.Time, leadHours int, enabled bool, recipients []uuid.UUID) (*time.Time, []uuid.UUID) {
	if !enabled {
		return nil, []uuid.UUID{}
	}
	if leadHours < 0 {
		leadHours = 0
	}
	notifyAt := start.Add(-time.Duration(leadHours) * time.Hour)
	if recipients == nil {
		recipients = []uuid.UUID{}
	}
	return &notifyAt, recipients
}
