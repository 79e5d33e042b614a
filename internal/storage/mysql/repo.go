package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"hotel_intake/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

// Store is the request store client. It never retries and never generates
// identifiers; both are the caller's job.
type Store struct{ db *sql.DB }

func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Create(ctx context.Context, r domain.HotelRequest) error {
	brands, err := json.Marshal(r.Brands)
	if err != nil {
		return &domain.StoreError{Op: "create", Err: err}
	}
	_, err = s.db.ExecContext(ctx, insertRequestSQL,
		r.ID,
		r.CreatedAt,
		r.Destination,
		r.Email,
		valStr(r.Nickname),
		r.CheckIn,
		r.CheckOut,
		string(brands),
		r.Source,
		valStr(r.SubmissionIP),
		valStr(r.UAHash),
	)
	if err != nil {
		return &domain.StoreError{Op: "create", Err: err}
	}
	return nil
}

func (s *Store) Status(ctx context.Context, id string) (domain.RequestStatus, error) {
	row := s.db.QueryRowContext(ctx, statusSQL, id)

	var st domain.RequestStatus
	var workbook sql.NullString
	if err := row.Scan(&st.Processed, &workbook, &st.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RequestStatus{}, domain.ErrNotFound
		}
		return domain.RequestStatus{}, &domain.StoreError{Op: "status", Err: err}
	}
	if workbook.Valid && strings.TrimSpace(workbook.String) != "" {
		st.Ready = true
		st.WorkbookURL = workbook.String
	}
	return st, nil
}

func (s *Store) Results(ctx context.Context, id string) ([]domain.ResultRow, error) {
	rows, err := s.db.QueryContext(ctx, resultsSQL, id)
	if err != nil {
		return nil, &domain.StoreError{Op: "results", Err: err}
	}
	defer rows.Close()

	out := []domain.ResultRow{} // no rows yet is an empty set, not an error
	for rows.Next() {
		var rr domain.ResultRow
		var (
			name, brand, dist sql.NullString
			price, disc       sql.NullFloat64
			retail, rating    sql.NullFloat64
			reviews           sql.NullInt64
			currency, booking sql.NullString
		)
		if err := rows.Scan(&name, &brand, &dist, &price, &disc, &retail, &rating, &reviews, &currency, &booking); err != nil {
			return nil, &domain.StoreError{Op: "results", Err: err}
		}
		rr.HotelName = name.String
		rr.Brand = brand.String
		rr.Distance = dist.String
		rr.Price = price.Float64
		rr.DiscountPct = disc.Float64
		rr.RetailPrice = retail.Float64
		rr.Rating = rating.Float64
		rr.ReviewCount = int(reviews.Int64)
		rr.Currency = currency.String
		rr.BookingURL = booking.String
		out = append(out, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "results", Err: err}
	}
	return out, nil
}

func (s *Store) Summary(ctx context.Context, id string) (domain.RequestSummary, error) {
	row := s.db.QueryRowContext(ctx, summarySQL, id)

	var sm domain.RequestSummary
	if err := row.Scan(&sm.Destination, &sm.CheckIn, &sm.CheckOut); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RequestSummary{}, domain.ErrNotFound
		}
		return domain.RequestSummary{}, &domain.StoreError{Op: "summary", Err: err}
	}
	return sm, nil
}
