package medication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TxRunner executes fn inside one database transaction. Repositories
// called by fn must observe the transaction through the context.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// EditScope selects how far a mutation reaches.
type EditScope string

const (
	ScopeSingle EditScope = "single"
	ScopeSeries EditScope = "series"
)

// OccurrenceRequest is the write payload for creating or editing a
// scheduled dose. LeadHours nil means "use the configured default".
type OccurrenceRequest struct {
	MedicationName string      `json:"medication_name"`
	Dose           string      `json:"dose"`
	Description    string      `json:"description"`
	Start          time.Time   `json:"start"`
	End            time.Time   `json:"end"`
	Rule           Rule        `json:"repetition_rule"`
	RepeatUntil    *time.Time  `json:"repeat_until,omitempty"`
	NotifyEnabled  bool        `json:"notify_enabled"`
	LeadHours      *int        `json:"lead_hours,omitempty"`
	Recipients     []uuid.UUID `json:"notify_recipients"`
}

// Service coordinates occurrence and stock mutations. Multi-row
// mutations (series create, series replace) run inside a single
// transaction, and a replace always inserts the new rows before
// deleting the old ones: if the transaction machinery ever fails
// half-way the family is left with duplicates rather than a hole.
type Service struct {
	occurrences      OccurrenceRepository
	stock            StockRepository
	runTx            TxRunner
	maxOccurrences   int
	defaultLeadHours int
}

func NewService(occurrences OccurrenceRepository, stock StockRepository, runTx TxRunner, maxOccurrences, defaultLeadHours int) *Service {
	return &Service{
		occurrences:      occurrences,
		stock:            stock,
		runTx:            runTx,
		maxOccurrences:   maxOccurrences,
		defaultLeadHours: defaultLeadHours,
	}
}

func (s *Service) validateRequest(req *OccurrenceRequest) error {
	if req.MedicationName == "" {
		return fmt.Errorf("%w: medication_name is required", ErrValidation)
	}
	if req.Dose == "" {
		return fmt.Errorf("%w: dose is required", ErrValidation)
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrValidation)
	}
	if !req.End.After(req.Start) {
		return fmt.Errorf("%w: end must be after start", ErrValidation)
	}
	if req.Rule == "" {
		req.Rule = RuleNone
	}
	if !req.Rule.Valid() {
		return fmt.Errorf("%w: unknown repetition rule %q", ErrValidation, req.Rule)
	}
	if req.Rule != RuleNone {
		if req.RepeatUntil == nil {
			return fmt.Errorf("%w: repeat_until is required for a recurring dose", ErrValidation)
		}
		if req.RepeatUntil.Before(req.Start) {
			return fmt.Errorf("%w: repeat_until is before start", ErrValidation)
		}
	}
	return nil
}

func (s *Service) leadHours(req *OccurrenceRequest) int {
	if req.LeadHours != nil {
		return *req.LeadHours
	}
	return s.defaultLeadHours
}

// buildBase assembles the prototype occurrence all generated rows are
// copied from. NotifyAt is recomputed per row by GenerateSeries callers
// because it tracks each row's own start.
func (s *Service) buildBase(family, userID string, req *OccurrenceRequest) Occurrence {
	return Occurrence{
		FamilyGroup:    family,
		Title:          DoseTitle(req.MedicationName),
		Description:    req.Description,
		MedicationName: req.MedicationName,
		Dose:           req.Dose,
		Start:          req.Start,
		End:            req.End,
		RepetitionRule: req.Rule,
		CreatedBy:      userID,
	}
}

func (s *Service) applyNotification(o *Occurrence, req *OccurrenceRequest) {
	o.NotifyAt, o.NotifyRecipients = ComputeNotification(o.Start, s.leadHours(req), req.NotifyEnabled, req.Recipients)
}

// CreateOccurrence records a new dose. A repetition rule other than
// none expands eagerly into the full series, inserted in one
// transaction.
func (s *Service) CreateOccurrence(ctx context.Context, family, userID string, req *OccurrenceRequest) ([]*Occurrence, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	base := s.buildBase(family, userID, req)

	if req.Rule == RuleNone {
		s.applyNotification(&base, req)
		if err := s.occurrences.Create(ctx, &base); err != nil {
			return nil, fmt.Errorf("create occurrence: %w", err)
		}
		return []*Occurrence{&base}, nil
	}

	seriesID := NewSeriesID()
	base.SeriesID = &seriesID
	generated := GenerateSeries(base, *req.RepeatUntil, s.maxOccurrences)
	if len(generated) == 0 {
		return nil, fmt.Errorf("%w: repetition produced no occurrences", ErrValidation)
	}

	rows := make([]*Occurrence, len(generated))
	for i := range generated {
		s.applyNotification(&generated[i], req)
		rows[i] = &generated[i]
	}

	err := s.runTx(ctx, func(ctx context.Context) error {
		return s.occurrences.CreateBatch(ctx, rows)
	})
	if err != nil {
		return nil, fmt.Errorf("create series: %w", err)
	}
	return rows, nil
}

// UpdateOccurrence edits one occurrence or its whole series.
//
// Scope single detaches the row from its repetition pattern (rule
// resets to none) while keeping the series id, so a later edit-series
// on a sibling still replaces it together with the rest.
//
// Scope series regenerates every row of the series from the request
// under a fresh series id. When the request carries no repeat_until,
// the latest end among the current siblings is used, so the series
// keeps its original horizon. The new rows are inserted before the old
// ones are deleted, inside one transaction.
func (s *Service) UpdateOccurrence(ctx context.Context, family, userID string, id uuid.UUID, scope EditScope, req *OccurrenceRequest) ([]*Occurrence, error) {
	existing, err := s.occurrences.GetByID(ctx, family, id)
	if err != nil {
		return nil, err
	}

	if scope == ScopeSeries && existing.Recurring() {
		return s.replaceSeries(ctx, family, userID, existing, req)
	}
	return s.updateSingle(ctx, family, userID, existing, req)
}

func (s *Service) updateSingle(ctx context.Context, family, userID string, existing *Occurrence, req *OccurrenceRequest) ([]*Occurrence, error) {
	// A single edit never changes the repetition pattern.
	req.Rule = RuleNone
	req.RepeatUntil = nil
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	updated := s.buildBase(family, userID, req)
	updated.ID = existing.ID
	updated.SeriesID = existing.SeriesID
	updated.CreatedBy = existing.CreatedBy
	updated.CreatedAt = existing.CreatedAt
	s.applyNotification(&updated, req)

	if err := s.occurrences.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("update occurrence: %w", err)
	}
	return []*Occurrence{&updated}, nil
}

func (s *Service) replaceSeries(ctx context.Context, family, userID string, existing *Occurrence, req *OccurrenceRequest) ([]*Occurrence, error) {
	if req.Rule == "" {
		req.Rule = RuleNone
	}
	if req.Rule != RuleNone && req.RepeatUntil == nil {
		siblings, err := s.occurrences.ListBySeries(ctx, family, *existing.SeriesID)
		if err != nil {
			return nil, fmt.Errorf("list series: %w", err)
		}
		latest := req.Start
		for _, sib := range siblings {
			if sib.End.After(latest) {
				latest = sib.End
			}
		}
		req.RepeatUntil = &latest
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	base := s.buildBase(family, userID, req)
	base.CreatedBy = existing.CreatedBy

	var rows []*Occurrence
	if req.Rule == RuleNone {
		// The edit collapses the series to one dose.
		s.applyNotification(&base, req)
		rows = []*Occurrence{&base}
	} else {
		seriesID := NewSeriesID()
		base.SeriesID = &seriesID
		generated := GenerateSeries(base, *req.RepeatUntil, s.maxOccurrences)
		if len(generated) == 0 {
			return nil, fmt.Errorf("%w: repetition produced no occurrences", ErrValidation)
		}
		rows = make([]*Occurrence, len(generated))
		for i := range generated {
			s.applyNotification(&generated[i], req)
			rows[i] = &generated[i]
		}
	}

	oldSeriesID := *existing.SeriesID
	err := s.runTx(ctx, func(ctx context.Context) error {
		if err := s.occurrences.CreateBatch(ctx, rows); err != nil {
			return fmt.Errorf("insert replacement series: %w", err)
		}
		if _, err := s.occurrences.DeleteBySeries(ctx, family, oldSeriesID); err != nil {
			return fmt.Errorf("delete replaced series: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteOccurrence removes one occurrence or its whole series.
// Deleting something already gone is a success.
func (s *Service) DeleteOccurrence(ctx context.Context, family string, id uuid.UUID, scope EditScope) error {
	if scope != ScopeSeries {
		return s.occurrences.Delete(ctx, family, id)
	}

	existing, err := s.occurrences.GetByID(ctx, family, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if !existing.Recurring() {
		return s.occurrences.Delete(ctx, family, id)
	}
	_, err = s.occurrences.DeleteBySeries(ctx, family, *existing.SeriesID)
	return err
}

func (s *Service) GetOccurrence(ctx context.Context, family string, id uuid.UUID) (*Occurrence, error) {
	return s.occurrences.GetByID(ctx, family, id)
}

func (s *Service) SearchOccurrences(ctx context.Context, family string, params map[string]string, limit, offset int) ([]*Occurrence, int, error) {
	return s.occurrences.Search(ctx, family, params, limit, offset)
}

// Reminders returns the pending notification tuples for the family,
// ordered by notify time.
func (s *Service) Reminders(ctx context.Context, family string, from time.Time, limit, offset int) ([]Reminder, int, error) {
	rows, total, err := s.occurrences.ListReminders(ctx, family, from, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	reminders := make([]Reminder, 0, len(rows))
	for _, o := range rows {
		if o.NotifyAt == nil {
			continue
		}
		reminders = append(reminders, Reminder{
			OccurrenceID:   o.ID,
			Title:          o.Title,
			MedicationName: o.MedicationName,
			Dose:           o.Dose,
			Start:          o.Start,
			NotifyAt:       *o.NotifyAt,
			Recipients:     o.NotifyRecipients,
		})
	}
	return reminders, total, nil
}

// =========== Stock ===========

func (s *Service) validateStock(item *StockItem) error {
	if item.MedicationName == "" {
		return fmt.Errorf("%w: medication_name is required", ErrValidation)
	}
	if item.CurrentQuantity < 0 {
		return fmt.Errorf("%w: current_quantity cannot be negative", ErrValidation)
	}
	if item.MinimumThreshold < 0 {
		return fmt.Errorf("%w: minimum_threshold cannot be negative", ErrValidation)
	}
	return nil
}

func (s *Service) CreateStock(ctx context.Context, family string, item *StockItem) (*StockItem, error) {
	item.FamilyGroup = family
	if err := s.validateStock(item); err != nil {
		return nil, err
	}
	if err := s.stock.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create stock item: %w", err)
	}
	item.LowStock = item.IsLow()
	return item, nil
}

func (s *Service) GetStock(ctx context.Context, family string, id uuid.UUID) (*StockItem, error) {
	return s.stock.GetByID(ctx, family, id)
}

func (s *Service) UpdateStock(ctx context.Context, family string, id uuid.UUID, item *StockItem) (*StockItem, error) {
	item.FamilyGroup = family
	item.ID = id
	if err := s.validateStock(item); err != nil {
		return nil, err
	}
	existing, err := s.stock.GetByID(ctx, family, id)
	if err != nil {
		return nil, err
	}
	item.CreatedAt = existing.CreatedAt
	if err := s.stock.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("update stock item: %w", err)
	}
	item.LowStock = item.IsLow()
	return item, nil
}

// AdjustStockQuantity sets the absolute quantity after a manual refill
// or consumption. Scheduled doses never call this: the ledger only
// moves when a family member moves it.
func (s *Service) AdjustStockQuantity(ctx context.Context, family string, id uuid.UUID, newQuantity float64) (*StockItem, error) {
	if newQuantity < 0 {
		return nil, fmt.Errorf("%w: quantity cannot be negative", ErrValidation)
	}
	return s.stock.AdjustQuantity(ctx, family, id, newQuantity)
}

func (s *Service) DeleteStock(ctx context.Context, family string, id uuid.UUID) error {
	return s.stock.Delete(ctx, family, id)
}

func (s *Service) ListStock(ctx context.Context, family string, limit, offset int) ([]*StockItem, int, error) {
	return s.stock.ListByFamily(ctx, family, limit, offset)
}
