// Package store persists bot users, subscriptions and district data in
// Postgres and implements the domain service on top of that state.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/casewatch/casebot/domain"
)

// DistrictRecord is one district row including the latest reported figures.
type DistrictRecord struct {
	ID          int             `db:"id"`
	Name        string          `db:"name"`
	Incidence   sql.NullFloat64 `db:"incidence"`
	NewCases    sql.NullInt64   `db:"new_cases"`
	NewDeaths   sql.NullInt64   `db:"new_deaths"`
	TotalCases  sql.NullInt64   `db:"total_cases"`
	TotalDeaths sql.NullInt64   `db:"total_deaths"`
	VaccFirst   sql.NullInt64   `db:"vacc_first"`
	VaccFull    sql.NullInt64   `db:"vacc_full"`
	ReportDate  sql.NullTime    `db:"report_date"`
}

// Store wraps the database handle with the bot's queries.
type Store struct {
	db *sqlx.DB
}

// New builds a Store on an open connection.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// EnsureUser creates the user row on first contact.
func (s *Store) EnsureUser(ctx context.Context, userID int64, lang string) error {
	if lang == "" {
		lang = "de"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bot_users (user_id, language)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`, userID, lang)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

// DeleteUser removes the user and, via cascade, their subscriptions.
func (s *Store) DeleteUser(ctx context.Context, userID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bot_users WHERE user_id = $1`, userID)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SetLanguage stores the user's preferred language.
func (s *Store) SetLanguage(ctx context.Context, userID int64, lang string) error {
	if err := s.EnsureUser(ctx, userID, lang); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE bot_users SET language = $2 WHERE user_id = $1`, userID, lang)
	if err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	return nil
}

// SearchDistricts finds districts whose name contains the query.
func (s *Store) SearchDistricts(ctx context.Context, query string) ([]domain.District, error) {
	var out []domain.District
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, name FROM districts
		WHERE lower(name) LIKE '%' || lower($1) || '%'
		ORDER BY (lower(name) = lower($1)) DESC, name
		LIMIT 20`, query)
	if err != nil {
		return nil, fmt.Errorf("search districts: %w", err)
	}
	return out, nil
}

// District loads one district with its latest figures.
func (s *Store) District(ctx context.Context, districtID int) (DistrictRecord, error) {
	var rec DistrictRecord
	err := s.db.GetContext(ctx, &rec, `
		SELECT id, name, incidence, new_cases, new_deaths,
		       total_cases, total_deaths, vacc_first, vacc_full, report_date
		FROM districts WHERE id = $1`, districtID)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("load district %d: %w", districtID, err)
	}
	return rec, nil
}

// Subscribe adds a subscription; it reports whether the row is new.
func (s *Store) Subscribe(ctx context.Context, userID int64, districtID int) (bool, error) {
	if err := s.EnsureUser(ctx, userID, ""); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, district_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, district_id) DO NOTHING`, userID, districtID)
	if err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Unsubscribe removes a subscription; it reports whether one existed.
func (s *Store) Unsubscribe(ctx context.Context, userID int64, districtID int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM subscriptions WHERE user_id = $1 AND district_id = $2`,
		userID, districtID)
	if err != nil {
		return false, fmt.Errorf("unsubscribe: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Subscriptions lists the user's subscribed districts by name.
func (s *Store) Subscriptions(ctx context.Context, userID int64) ([]domain.District, error) {
	var out []domain.District
	err := s.db.SelectContext(ctx, &out, `
		SELECT d.id, d.name
		FROM subscriptions s
		JOIN districts d ON d.id = s.district_id
		WHERE s.user_id = $1
		ORDER BY d.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("subscriptions: %w", err)
	}
	return out, nil
}

// IsSubscribed reports whether the pair exists.
func (s *Store) IsSubscribed(ctx context.Context, userID int64, districtID int) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM subscriptions WHERE user_id = $1 AND district_id = $2
		)`, userID, districtID)
	if err != nil {
		return false, fmt.Errorf("is subscribed: %w", err)
	}
	return exists, nil
}

// AddFeedback stores one feedback message.
func (s *Store) AddFeedback(ctx context.Context, userID int64, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (user_id, message) VALUES ($1, $2)`, userID, text)
	if err != nil {
		return fmt.Errorf("add feedback: %w", err)
	}
	return nil
}

// AllUserIDs lists every known user.
func (s *Store) AllUserIDs(ctx context.Context) ([]int64, error) {
	var out []int64
	if err := s.db.SelectContext(ctx, &out, `SELECT user_id FROM bot_users ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("all users: %w", err)
	}
	return out, nil
}

// LatestReportDate is the newest report date across all districts.
func (s *Store) LatestReportDate(ctx context.Context) (time.Time, bool, error) {
	var latest sql.NullTime
	if err := s.db.GetContext(ctx, &latest, `SELECT max(report_date) FROM districts`); err != nil {
		return time.Time{}, false, fmt.Errorf("latest report date: %w", err)
	}
	return latest.Time, latest.Valid, nil
}

// UnconfirmedUsers lists subscribers who have not yet received the report
// for the given date.
func (s *Store) UnconfirmedUsers(ctx context.Context, date time.Time) ([]int64, error) {
	var out []int64
	err := s.db.SelectContext(ctx, &out, `
		SELECT DISTINCT u.user_id
		FROM bot_users u
		JOIN subscriptions s ON s.user_id = u.user_id
		WHERE u.last_report_date IS NULL OR u.last_report_date < $1
		ORDER BY u.user_id`, date)
	if err != nil {
		return nil, fmt.Errorf("unconfirmed users: %w", err)
	}
	return out, nil
}

// ConfirmReport marks the date's report delivered for the user. Confirming
// twice leaves the row unchanged.
func (s *Store) ConfirmReport(ctx context.Context, userID int64, date time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE bot_users SET last_report_date = $2
		WHERE user_id = $1
		  AND (last_report_date IS NULL OR last_report_date < $2)`, userID, date)
	if err != nil {
		return fmt.Errorf("confirm report: %w", err)
	}
	return nil
}

// Counters aggregates usage numbers for the statistics command.
type Counters struct {
	Users         int `db:"users"`
	Subscriptions int `db:"subscriptions"`
	Feedback      int `db:"feedback"`
}

// Count reads the usage counters.
func (s *Store) Count(ctx context.Context) (Counters, error) {
	var c Counters
	err := s.db.GetContext(ctx, &c, `
		SELECT
			(SELECT count(*) FROM bot_users)     AS users,
			(SELECT count(*) FROM subscriptions) AS subscriptions,
			(SELECT count(*) FROM feedback)      AS feedback`)
	if err != nil {
		return c, fmt.Errorf("count: %w", err)
	}
	return c, nil
}

// TopDistricts lists the most subscribed districts.
func (s *Store) TopDistricts(ctx context.Context, limit int) ([]domain.District, error) {
	if limit <= 0 {
		limit = 5
	}
	var out []domain.District
	err := s.db.SelectContext(ctx, &out, `
		SELECT d.id, d.name
		FROM subscriptions s
		JOIN districts d ON d.id = s.district_id
		GROUP BY d.id, d.name
		ORDER BY count(*) DESC, d.name
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("top districts: %w", err)
	}
	return out, nil
}
