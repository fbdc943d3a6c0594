package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentfight/arena/internal/domain"
)

// HistoryStore implements domain.HistoryStore using PostgreSQL.
type HistoryStore struct {
	pool *pgxpool.Pool
}

// NewHistoryStore creates a HistoryStore backed by the given connection pool.
func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

var _ domain.HistoryStore = (*HistoryStore)(nil)

// Add persists a finalised result. Results are immutable, so a conflicting
// insert is a restart replay and is ignored.
func (s *HistoryStore) Add(ctx context.Context, r domain.MatchResult) error {
	fighterA, err := json.Marshal(r.FighterA)
	if err != nil {
		return fmt.Errorf("postgres: marshal summary a: %w", err)
	}
	fighterB, err := json.Marshal(r.FighterB)
	if err != nil {
		return fmt.Errorf("postgres: marshal summary b: %w", err)
	}

	const query = `
		INSERT INTO match_history (
			match_id, winner, winner_name, method, duration_ms, ticks,
			reward, seed, fighter_a, fighter_b, decided_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (match_id) DO NOTHING`

	_, err = s.pool.Exec(ctx, query,
		r.MatchID, string(r.Winner), r.WinnerName, string(r.Method),
		r.Duration.Milliseconds(), r.Ticks, r.Reward, r.Seed,
		fighterA, fighterB, r.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: add history %s: %w", r.MatchID, err)
	}
	return nil
}

const historyCols = `match_id, winner, winner_name, method, duration_ms, ticks,
	reward, seed, fighter_a, fighter_b, decided_at`

func scanResult(row pgx.Row) (domain.MatchResult, error) {
	var r domain.MatchResult
	var winner, method string
	var durationMS int64
	var fighterA, fighterB []byte
	err := row.Scan(
		&r.MatchID, &winner, &r.WinnerName, &method, &durationMS, &r.Ticks,
		&r.Reward, &r.Seed, &fighterA, &fighterB, &r.DecidedAt,
	)
	if err != nil {
		return domain.MatchResult{}, err
	}
	r.Winner = domain.Side(winner)
	r.Method = domain.ResultMethod(method)
	r.Duration = time.Duration(durationMS) * time.Millisecond
	if err := json.Unmarshal(fighterA, &r.FighterA); err != nil {
		return domain.MatchResult{}, fmt.Errorf("unmarshal summary a: %w", err)
	}
	if err := json.Unmarshal(fighterB, &r.FighterB); err != nil {
		return domain.MatchResult{}, fmt.Errorf("unmarshal summary b: %w", err)
	}
	return r, nil
}

func collectResults(rows pgx.Rows) ([]domain.MatchResult, error) {
	var results []domain.MatchResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan history: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: history rows: %w", err)
	}
	return results, nil
}

// List returns results newest first with pagination and time filtering.
func (s *HistoryStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.MatchResult, error) {
	query := `SELECT ` + historyCols + ` FROM match_history`
	args := []any{}
	argIdx := 1
	where := ""

	if opts.Since != nil {
		where = fmt.Sprintf(" WHERE decided_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		if where == "" {
			where = " WHERE"
		} else {
			where += " AND"
		}
		where += fmt.Sprintf(" decided_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}
	query += where + " ORDER BY decided_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list history: %w", err)
	}
	defer rows.Close()
	return collectResults(rows)
}

// ListBefore returns results decided strictly before the cutoff, for
// archival.
func (s *HistoryStore) ListBefore(ctx context.Context, before time.Time) ([]domain.MatchResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+historyCols+` FROM match_history WHERE decided_at < $1 ORDER BY decided_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list history before %s: %w", before, err)
	}
	defer rows.Close()
	return collectResults(rows)
}

// DeleteBefore removes results decided strictly before the cutoff.
func (s *HistoryStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM match_history WHERE decided_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete history before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}
