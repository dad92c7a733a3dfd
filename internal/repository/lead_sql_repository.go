package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/leadflow-api/internal/models"
)

// SQLLeadRepository stores leads and their history in two tables. Collection
// and history order are kept through explicit position columns.
type SQLLeadRepository struct {
	db *sqlx.DB
}

// NewSQLLeadRepository constructs a SQL backed lead repository.
func NewSQLLeadRepository(db *sqlx.DB) *SQLLeadRepository {
	return &SQLLeadRepository{db: db}
}

type leadRow struct {
	ID             string         `db:"id"`
	Position       int            `db:"position"`
	StudentName    string         `db:"student_name"`
	PhoneNumber    string         `db:"phone_number"`
	InquiryDate    time.Time      `db:"inquiry_date"`
	CourseSelected string         `db:"course_selected"`
	Stage          string         `db:"stage"`
	Origin         string         `db:"origin"`
	AssignedTo     sql.NullString `db:"assigned_to"`
	LastUpdated    sql.NullTime   `db:"last_updated"`
	Remarks        string         `db:"remarks"`
}

type historyRow struct {
	LeadID     string         `db:"lead_id"`
	Position   int            `db:"position"`
	Type       string         `db:"entry_type"`
	Content    string         `db:"content"`
	RecordedAt time.Time      `db:"recorded_at"`
	Author     string         `db:"author"`
	FromStage  sql.NullString `db:"from_stage"`
	ToStage    sql.NullString `db:"to_stage"`
}

const (
	selectLeadsQuery = `SELECT id, position, student_name, phone_number, inquiry_date, course_selected, stage, origin, assigned_to, last_updated, remarks
        FROM leads ORDER BY position`
	selectHistoryQuery = `SELECT lead_id, position, entry_type, content, recorded_at, author, from_stage, to_stage
        FROM lead_history ORDER BY lead_id, position`
	insertLeadQuery = `INSERT INTO leads (id, position, student_name, phone_number, inquiry_date, course_selected, stage, origin, assigned_to, last_updated, remarks)
        VALUES (:id, :position, :student_name, :phone_number, :inquiry_date, :course_selected, :stage, :origin, :assigned_to, :last_updated, :remarks)`
	insertHistoryQuery = `INSERT INTO lead_history (lead_id, position, entry_type, content, recorded_at, author, from_stage, to_stage)
        VALUES (:lead_id, :position, :entry_type, :content, :recorded_at, :author, :from_stage, :to_stage)`
)

// Load reads the full collection in stored order.
func (r *SQLLeadRepository) Load(ctx context.Context) ([]models.Lead, error) {
	var rows []leadRow
	if err := r.db.SelectContext(ctx, &rows, selectLeadsQuery); err != nil {
		return nil, fmt.Errorf("select leads: %w", err)
	}
	var entries []historyRow
	if err := r.db.SelectContext(ctx, &entries, selectHistoryQuery); err != nil {
		return nil, fmt.Errorf("select lead history: %w", err)
	}

	history := make(map[string][]models.HistoryEntry, len(rows))
	for _, e := range entries {
		history[e.LeadID] = append(history[e.LeadID], e.toModel())
	}

	leads := make([]models.Lead, 0, len(rows))
	for _, row := range rows {
		lead := row.toModel()
		if h, ok := history[row.ID]; ok {
			lead.History = h
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

// Save replaces both tables inside one transaction.
func (r *SQLLeadRepository) Save(ctx context.Context, leads []models.Lead) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save leads: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM lead_history"); err != nil {
		return fmt.Errorf("clear lead history: %w", err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM leads"); err != nil {
		return fmt.Errorf("clear leads: %w", err)
	}

	for i, lead := range leads {
		if _, err = tx.NamedExecContext(ctx, insertLeadQuery, newLeadRow(lead, i)); err != nil {
			return fmt.Errorf("insert lead %s: %w", lead.ID, err)
		}
		for j, entry := range lead.History {
			if _, err = tx.NamedExecContext(ctx, insertHistoryQuery, newHistoryRow(lead.ID, j, entry)); err != nil {
				return fmt.Errorf("insert history %s/%d: %w", lead.ID, j, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save leads: %w", err)
	}
	return nil
}

func newLeadRow(l models.Lead, position int) leadRow {
	row := leadRow{
		ID:             l.ID,
		Position:       position,
		StudentName:    l.StudentName,
		PhoneNumber:    l.PhoneNumber,
		InquiryDate:    l.Date.UTC(),
		CourseSelected: l.CourseSelected,
		Stage:          string(l.Stage),
		Origin:         l.Origin,
		AssignedTo:     sql.NullString{String: l.AssignedTo, Valid: l.AssignedTo != ""},
		Remarks:        l.Remarks,
	}
	if l.LastUpdated != nil {
		row.LastUpdated = sql.NullTime{Time: l.LastUpdated.UTC(), Valid: true}
	}
	return row
}

func (row leadRow) toModel() models.Lead {
	lead := models.Lead{
		ID:             row.ID,
		StudentName:    row.StudentName,
		PhoneNumber:    row.PhoneNumber,
		Date:           row.InquiryDate.UTC(),
		CourseSelected: row.CourseSelected,
		Stage:          models.Stage(row.Stage),
		Origin:         row.Origin,
		AssignedTo:     row.AssignedTo.String,
		Remarks:        row.Remarks,
		History:        []models.HistoryEntry{},
	}
	if row.LastUpdated.Valid {
		ts := row.LastUpdated.Time.UTC()
		lead.LastUpdated = &ts
	}
	return lead
}

func newHistoryRow(leadID string, position int, e models.HistoryEntry) historyRow {
	return historyRow{
		LeadID:     leadID,
		Position:   position,
		Type:       string(e.Type),
		Content:    e.Content,
		RecordedAt: e.Timestamp.UTC(),
		Author:     e.User,
		FromStage:  sql.NullString{String: string(e.From), Valid: e.Type == models.HistoryStage},
		ToStage:    sql.NullString{String: string(e.To), Valid: e.Type == models.HistoryStage},
	}
}

func (row historyRow) toModel() models.HistoryEntry {
	return models.HistoryEntry{
		Type:      models.HistoryType(row.Type),
		Content:   row.Content,
		Timestamp: row.RecordedAt.UTC(),
		User:      row.Author,
		From:      models.Stage(row.FromStage.String),
		To:        models.Stage(row.ToStage.String),
	}
}
