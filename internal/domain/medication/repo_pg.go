package medication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nidohq/nido/internal/platform/db"
)

// =========== Occurrence Repository ===========

type occurrenceRepoPG struct{ pool *pgxpool.Pool }

func NewOccurrenceRepoPG(pool *pgxpool.Pool) OccurrenceRepository {
	return &occurrenceRepoPG{pool: pool}
}

func (r *occurrenceRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const occCols = `id, family_group, title, description, medication_name, dose,
	start_time, end_time, series_id, repetition_rule, notify_at, notify_recipients,
	created_by, created_at, updated_at`

func (r *occurrenceRepoPG) scanOccurrence(row pgx.Row) (*Occurrence, error) {
	var o Occurrence
	var recipients []string
	err := row.Scan(&o.ID, &o.FamilyGroup, &o.Title, &o.Description, &o.MedicationName, &o.Dose,
		&o.Start, &o.End, &o.SeriesID, &o.RepetitionRule, &o.NotifyAt, &recipients,
		&o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	o.NotifyRecipients = recipientsFromStrings(recipients)
	return &o, nil
}

func recipientsToStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func recipientsFromStrings(ss []string) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ss))
	for _, s := range ss {
		id, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (r *occurrenceRepoPG) Create(ctx context.Context, o *Occurrence) error {
	o.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO occurrence (id, family_group, title, description, medication_name, dose,
			start_time, end_time, series_id, repetition_rule, notify_at, notify_recipients, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		o.ID, o.FamilyGroup, o.Title, o.Description, o.MedicationName, o.Dose,
		o.Start, o.End, o.SeriesID, o.RepetitionRule, o.NotifyAt,
		recipientsToStrings(o.NotifyRecipients), o.CreatedBy)
	return err
}

func (r *occurrenceRepoPG) CreateBatch(ctx context.Context, rows []*Occurrence) error {
	batch := &pgx.Batch{}
	for _, o := range rows {
		o.ID = uuid.New()
		batch.Queue(`
			INSERT INTO occurrence (id, family_group, title, description, medication_name, dose,
				start_time, end_time, series_id, repetition_rule, notify_at, notify_recipients, created_by)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			o.ID, o.FamilyGroup, o.Title, o.Description, o.MedicationName, o.Dose,
			o.Start, o.End, o.SeriesID, o.RepetitionRule, o.NotifyAt,
			recipientsToStrings(o.NotifyRecipients), o.CreatedBy)
	}

	results := r.conn(ctx).SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert occurrence: %w", err)
		}
	}
	return results.Close()
}

func (r *occurrenceRepoPG) GetByID(ctx context.Context, family string, id uuid.UUID) (*Occurrence, error) {
	return r.scanOccurrence(r.conn(ctx).QueryRow(ctx,
		`SELECT `+occCols+` FROM occurrence WHERE family_group = $1 AND id = $2`, family, id))
}

func (r *occurrenceRepoPG) Update(ctx context.Context, o *Occurrence) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE occurrence SET title=$3, description=$4, medication_name=$5, dose=$6,
			start_time=$7, end_time=$8, series_id=$9, repetition_rule=$10,
			notify_at=$11, notify_recipients=$12, updated_at=NOW()
		WHERE family_group = $1 AND id = $2`,
		o.FamilyGroup, o.ID, o.Title, o.Description, o.MedicationName, o.Dose,
		o.Start, o.End, o.SeriesID, o.RepetitionRule,
		o.NotifyAt, recipientsToStrings(o.NotifyRecipients))
	return err
}

// Delete is idempotent: removing an absent row succeeds.
func (r *occurrenceRepoPG) Delete(ctx context.Context, family string, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM occurrence WHERE family_group = $1 AND id = $2`, family, id)
	return err
}

func (r *occurrenceRepoPG) DeleteBySeries(ctx context.Context, family string, seriesID uuid.UUID) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM occurrence WHERE family_group = $1 AND series_id = $2`, family, seriesID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *occurrenceRepoPG) ListBySeries(ctx context.Context, family string, seriesID uuid.UUID) ([]*Occurrence, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+occCols+` FROM occurrence WHERE family_group = $1 AND series_id = $2 ORDER BY start_time ASC`,
		family, seriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Occurrence
	for rows.Next() {
		o, err := r.scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

func (r *occurrenceRepoPG) Search(ctx context.Context, family string, params map[string]string, limit, offset int) ([]*Occurrence, int, error) {
	query := `SELECT ` + occCols + ` FROM occurrence WHERE family_group = $1`
	countQuery := `SELECT COUNT(*) FROM occurrence WHERE family_group = $1`
	args := []interface{}{family}
	idx := 2

	if p, ok := params["from"]; ok {
		query += fmt.Sprintf(` AND start_time >= $%d`, idx)
		countQuery += fmt.Sprintf(` AND start_time >= $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["to"]; ok {
		query += fmt.Sprintf(` AND start_time <= $%d`, idx)
		countQuery += fmt.Sprintf(` AND start_time <= $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["medication"]; ok {
		query += fmt.Sprintf(` AND medication_name = $%d`, idx)
		countQuery += fmt.Sprintf(` AND medication_name = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["series"]; ok {
		query += fmt.Sprintf(` AND series_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND series_id = $%d`, idx)
		args = append(args, p)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY start_time ASC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Occurrence
	for rows.Next() {
		o, err := r.scanOccurrence(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	return items, total, rows.Err()
}

func (r *occurrenceRepoPG) ListReminders(ctx context.Context, family string, from time.Time, limit, offset int) ([]*Occurrence, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM occurrence WHERE family_group = $1 AND notify_at IS NOT NULL AND notify_at >= $2`,
		family, from).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+occCols+` FROM occurrence
		WHERE family_group = $1 AND notify_at IS NOT NULL AND notify_at >= $2
		ORDER BY notify_at ASC LIMIT $3 OFFSET $4`,
		family, from, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Occurrence
	for rows.Next() {
		o, err := r.scanOccurrence(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	return items, total, rows.Err()
}

// =========== Stock Repository ===========

type stockRepoPG struct{ pool *pgxpool.Pool }

func NewStockRepoPG(pool *pgxpool.Pool) StockRepository {
	return &stockRepoPG{pool: pool}
}

func (r *stockRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const stockCols = `id, family_group, medication_name, dosage_label, instructions,
	current_quantity, minimum_threshold, restock_days, created_at, updated_at`

func (r *stockRepoPG) scanStock(row pgx.Row) (*StockItem, error) {
	var s StockItem
	err := row.Scan(&s.ID, &s.FamilyGroup, &s.MedicationName, &s.DosageLabel, &s.Instructions,
		&s.CurrentQuantity, &s.MinimumThreshold, &s.RestockDays, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.LowStock = s.IsLow()
	return &s, nil
}

func (r *stockRepoPG) Create(ctx context.Context, s *StockItem) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO stock_item (id, family_group, medication_name, dosage_label, instructions,
			current_quantity, minimum_threshold, restock_days)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		s.ID, s.FamilyGroup, s.MedicationName, s.DosageLabel, s.Instructions,
		s.CurrentQuantity, s.MinimumThreshold, s.RestockDays)
	return err
}

func (r *stockRepoPG) GetByID(ctx context.Context, family string, id uuid.UUID) (*StockItem, error) {
	return r.scanStock(r.conn(ctx).QueryRow(ctx,
		`SELECT `+stockCols+` FROM stock_item WHERE family_group = $1 AND id = $2`, family, id))
}

func (r *stockRepoPG) Update(ctx context.Context, s *StockItem) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE stock_item SET medication_name=$3, dosage_label=$4, instructions=$5,
			current_quantity=$6, minimum_threshold=$7, restock_days=$8, updated_at=NOW()
		WHERE family_group = $1 AND id = $2`,
		s.FamilyGroup, s.ID, s.MedicationName, s.DosageLabel, s.Instructions,
		s.CurrentQuantity, s.MinimumThreshold, s.RestockDays)
	return err
}

// Delete is idempotent: removing an absent row succeeds.
func (r *stockRepoPG) Delete(ctx context.Context, family string, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM stock_item WHERE family_group = $1 AND id = $2`, family, id)
	return err
}

func (r *stockRepoPG) ListByFamily(ctx context.Context, family string, limit, offset int) ([]*StockItem, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM stock_item WHERE family_group = $1`, family).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+stockCols+` FROM stock_item WHERE family_group = $1 ORDER BY medication_name ASC LIMIT $2 OFFSET $3`,
		family, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*StockItem
	for rows.Next() {
		s, err := r.scanStock(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *stockRepoPG) AdjustQuantity(ctx context.Context, family string, id uuid.UUID, newQuantity float64) (*StockItem, error) {
	return r.scanStock(r.conn(ctx).QueryRow(ctx, `
		UPDATE stock_item SET current_quantity = $3, updated_at = NOW()
		WHERE family_group = $1 AND id = $2
		RETURNING `+stockCols, family, id, newQuantity))
}
