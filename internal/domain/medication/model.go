package medication

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors. Handlers map ErrValidation to 400 and ErrNotFound to
// 404; everything else is a storage failure surfaced as-is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
)

// Rule is the repetition step pattern of a series.
type Rule string

const (
	RuleNone     Rule = "none"
	RuleDaily    Rule = "daily"
	RuleWeekly   Rule = "weekly"
	RuleMonthly  Rule = "monthly"
	RuleAnnually Rule = "annually"
)

var validRules = map[Rule]bool{
	RuleNone: true, RuleDaily: true, RuleWeekly: true,
	RuleMonthly: true, RuleAnnually: true,
}

func (r Rule) Valid() bool { return validRules[r] }

// Step advances a timestamp by one repetition interval. Month and year
// arithmetic follows time.AddDate normalization: a step landing on a
// day that does not exist rolls into the following month (Jan 31 + 1
// month = Mar 3 in a non-leap year).
func (r Rule) Step(t time.Time) time.Time {
	switch r {
	case RuleDaily:
		return t.AddDate(0, 0, 1)
	case RuleWeekly:
		return t.AddDate(0, 0, 7)
	case RuleMonthly:
		return t.AddDate(0, 1, 0)
	case RuleAnnually:
		return t.AddDate(1, 0, 0)
	}
	return t
}

// Occurrence is one concrete, dated instance of a scheduled dose.
// Every occurrence of a series carries the full repetition rule so a
// single row is enough to regenerate its series.
type Occurrence struct {
	ID               uuid.UUID   `db:"id" json:"id"`
	FamilyGroup      string      `db:"family_group" json:"family_group"`
	Title            string      `db:"title" json:"title"`
	Description      string      `db:"description" json:"description,omitempty"`
	MedicationName   string      `db:"medication_name" json:"medication_name"`
	Dose             string      `db:"dose" json:"dose"`
	Start            time.Time   `db:"start_time" json:"start"`
	End              time.Time   `db:"end_time" json:"end"`
	SeriesID         *uuid.UUID  `db:"series_id" json:"series_id,omitempty"`
	RepetitionRule   Rule        `db:"repetition_rule" json:"repetition_rule"`
	NotifyAt         *time.Time  `db:"notify_at" json:"notify_at,omitempty"`
	NotifyRecipients []uuid.UUID `db:"notify_recipients" json:"notify_recipients"`
	CreatedBy        string      `db:"created_by" json:"created_by"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
}

// Duration is constant across all occurrences of a series.
func (o *Occurrence) Duration() time.Duration {
	return o.End.Sub(o.Start)
}

// Recurring reports whether the occurrence belongs to a series.
func (o *Occurrence) Recurring() bool {
	return o.SeriesID != nil
}

// DoseTitle derives the display title for a scheduled dose.
func DoseTitle(medicationName string) string {
	return "Assunzione " + medicationName
}

// StockItem is a per-medication inventory record. Occurrences reference
// it by medication name, not by foreign key, and the scheduler never
// writes to it: stock changes are a manual flow.
type StockItem struct {
	ID               uuid.UUID `db:"id" json:"id"`
	FamilyGroup      string    `db:"family_group" json:"family_group"`
	MedicationName   string    `db:"medication_name" json:"medication_name"`
	DosageLabel      string    `db:"dosage_label" json:"dosage_label,omitempty"`
	Instructions     string    `db:"instructions" json:"instructions,omitempty"`
	CurrentQuantity  float64   `db:"current_quantity" json:"current_quantity"`
	MinimumThreshold float64   `db:"minimum_threshold" json:"minimum_threshold"`
	RestockDays      string    `db:"restock_days" json:"restock_days,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`

	// LowStock is derived, never stored.
	LowStock bool `db:"-" json:"low_stock"`
}

// IsLow reports whether the quantity is at or below the threshold.
func (s *StockItem) IsLow() bool {
	return s.CurrentQuantity <= s.MinimumThreshold
}

// Reminder is the tuple handed to the notification dispatch
// collaborator. Delivery mechanics live outside the core.
type Reminder struct {
	OccurrenceID   uuid.UUID   `json:"occurrence_id"`
	Title          string      `json:"title"`
	MedicationName string      `json:"medication_name"`
	Dose           string      `json:"dose"`
	Start          time.Time   `json:"start"`
	NotifyAt       time.Time   `json:"notify_at"`
	Recipients     []uuid.UUID `json:"recipients"`
}
