package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/aivs/invoice-compliance/internal/models"
)

// ErrReportNotFound is returned when no report has the requested id
var ErrReportNotFound = errors.New("report not found")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS compliance_reports (
	id                 UUID PRIMARY KEY,
	mode               TEXT NOT NULL,
	filename           TEXT NOT NULL DEFAULT '',
	vat_category       TEXT NOT NULL DEFAULT '',
	end_user_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
	cis_rate           NUMERIC(5,2) NOT NULL DEFAULT 0,
	subtotal           NUMERIC(14,2),
	total_due          NUMERIC(14,2),
	items_skipped      INTEGER NOT NULL DEFAULT 0,
	report             JSONB NOT NULL,
	object_key         TEXT NOT NULL DEFAULT '',
	invoice_key        TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Report is a persisted compliance check
type Report struct {
	ID               uuid.UUID               `json:"id"`
	Mode             string                  `json:"mode"` // "rules" or "ai"
	Filename         string                  `json:"filename"`
	VATCategory      string                  `json:"vatCategory"`
	EndUserConfirmed bool                    `json:"endUserConfirmed"`
	CISRate          decimal.Decimal         `json:"cisRate"`
	Subtotal         decimal.NullDecimal     `json:"subtotal"`
	TotalDue         decimal.NullDecimal     `json:"totalDue"`
	ItemsSkipped     int                     `json:"itemsSkipped"`
	Report           models.ComplianceReport `json:"report"`
	ObjectKey        string                  `json:"objectKey,omitempty"`  // rendered corrected invoice
	InvoiceKey       string                  `json:"invoiceKey,omitempty"` // original upload
	CreatedAt        time.Time               `json:"createdAt"`
}

// EnsureSchema creates the reports table if it is missing
func EnsureSchema(ctx context.Context) error {
	if Pool == nil {
		return ErrNoDatabase
	}
	if _, err := Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create reports table: %w", err)
	}
	return nil
}

// SaveReport inserts a report and fills in its id and creation time
func SaveReport(ctx context.Context, r *Report) error {
	if Pool == nil {
		return ErrNoDatabase
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}

	body, err := json.Marshal(r.Report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	query := `
		INSERT INTO compliance_reports (
			id, mode, filename, vat_category, end_user_confirmed, cis_rate,
			subtotal, total_due, items_skipped, report, object_key, invoice_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`
	err = Pool.QueryRow(ctx, query,
		r.ID, r.Mode, r.Filename, r.VATCategory, r.EndUserConfirmed, r.CISRate,
		r.Subtotal, r.TotalDue, r.ItemsSkipped, body, r.ObjectKey, r.InvoiceKey,
	).Scan(&r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// GetReportByID loads one report
func GetReportByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	if Pool == nil {
		return nil, ErrNoDatabase
	}

	query := `
		SELECT id, mode, filename, vat_category, end_user_confirmed, cis_rate,
		       subtotal, total_due, items_skipped, report, object_key, invoice_key, created_at
		FROM compliance_reports
		WHERE id = $1
	`
	r, err := scanReport(Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}
	return r, nil
}

const (
	defaultReportLimit = 50
	maxReportLimit     = 200
)

// reportLimit defaults a missing limit and caps a large one
func reportLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultReportLimit
	case limit > maxReportLimit:
		return maxReportLimit
	}
	return limit
}

// ListReports returns the most recent reports, newest first
func ListReports(ctx context.Context, limit int) ([]Report, error) {
	if Pool == nil {
		return nil, ErrNoDatabase
	}
	limit = reportLimit(limit)

	query := `
		SELECT id, mode, filename, vat_category, end_user_confirmed, cis_rate,
		       subtotal, total_due, items_skipped, report, object_key, invoice_key, created_at
		FROM compliance_reports
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := []Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

func scanReport(row pgx.Row) (*Report, error) {
	var r Report
	var body []byte
	err := row.Scan(
		&r.ID, &r.Mode, &r.Filename, &r.VATCategory, &r.EndUserConfirmed, &r.CISRate,
		&r.Subtotal, &r.TotalDue, &r.ItemsSkipped, &body, &r.ObjectKey, &r.InvoiceKey, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &r.Report); err != nil {
		return nil, fmt.Errorf("failed to decode report body: %w", err)
	}
	return &r, nil
}
