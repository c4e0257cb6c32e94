package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vitos/binary_mg_bot/internal/domain"
)

// timeLayout sorts lexically in time order for UTC values.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}

// dialect carries the differences between the SQL backends.
type dialect struct {
	name   string
	schema []string
	// numbered placeholders ($1) instead of ?
	numbered bool
}

// sqlStore implements domain.LedgerStore on database/sql.
type sqlStore struct {
	db *sql.DB
	d  dialect
}

func (s *sqlStore) initSchema(ctx context.Context) error {
	for _, q := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

func (s *sqlStore) q(query string) string {
	if !s.d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) CreateSession(ctx context.Context, sess *domain.Session) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO sessions (id, started_at, starting_balance, account_mode, source)
			  VALUES (?, ?, ?, ?, ?)`),
		sess.ID, formatTime(sess.StartedAt), sess.StartingBalance, string(sess.AccountMode), string(sess.Source))
	return err
}

func (s *sqlStore) scanSession(row *sql.Row) (*domain.Session, error) {
	var (
		sess    domain.Session
		started string
		mode    string
		source  string
	)
	if err := row.Scan(&sess.ID, &started, &sess.StartingBalance, &mode, &source); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	t, err := parseTime(started)
	if err != nil {
		return nil, err
	}
	sess.StartedAt = t
	sess.AccountMode = domain.AccountMode(mode)
	sess.Source = domain.SourceKind(source)
	return &sess, nil
}

func (s *sqlStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT id, started_at, starting_balance, account_mode, source FROM sessions WHERE id = ?`), id)
	return s.scanSession(row)
}

func (s *sqlStore) LatestSession(ctx context.Context) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, started_at, starting_balance, account_mode, source FROM sessions ORDER BY started_at DESC LIMIT 1`)
	return s.scanSession(row)
}

func (s *sqlStore) AppendSequence(ctx context.Context, seq *domain.Sequence) error {
	payload, err := json.Marshal(seq)
	if err != nil {
		return fmt.Errorf("failed to encode sequence: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.q(`INSERT INTO sequences (id, session_id, asset, direction, outcome, scenario, levels, profit, started_at, ended_at, payload)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		seq.ID, seq.SessionID, seq.Signal.Asset, string(seq.Signal.Direction), string(seq.Outcome), seq.Scenario,
		len(seq.Levels), seq.Profit(), formatTime(seq.StartedAt), formatTime(seq.EndedAt), string(payload))
	return err
}

func (s *sqlStore) ListSequences(ctx context.Context, sessionID string) ([]*domain.Sequence, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT payload FROM sequences WHERE session_id = ? ORDER BY seq_no`), sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seqs []*domain.Sequence
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var seq domain.Sequence
		if err := json.Unmarshal([]byte(payload), &seq); err != nil {
			return nil, fmt.Errorf("failed to decode sequence: %w", err)
		}
		seqs = append(seqs, &seq)
	}
	return seqs, rows.Err()
}

func (s *sqlStore) AppendAlert(ctx context.Context, a *domain.Alert) error {
	snap, err := json.Marshal(a.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode alert snapshot: %w", err)
	}
	query := `INSERT INTO alerts (session_id, created_at, reason, message, snapshot) VALUES (?, ?, ?, ?, ?)`
	args := []any{a.SessionID, formatTime(a.Timestamp), string(a.Reason), a.Message, string(snap)}
	if s.d.numbered {
		return s.db.QueryRowContext(ctx, s.q(query+` RETURNING id`), args...).Scan(&a.ID)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	a.ID, err = res.LastInsertId()
	return err
}

func (s *sqlStore) ListAlerts(ctx context.Context, sessionID string) ([]*domain.Alert, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, session_id, created_at, reason, message, snapshot FROM alerts WHERE session_id = ? ORDER BY id`), sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		var (
			a       domain.Alert
			created string
			reason  string
			snap    string
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &created, &reason, &a.Message, &snap); err != nil {
			return nil, err
		}
		if a.Timestamp, err = parseTime(created); err != nil {
			return nil, err
		}
		a.Reason = domain.GateReason(reason)
		if err := json.Unmarshal([]byte(snap), &a.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to decode alert snapshot: %w", err)
		}
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
