package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentfight/arena/internal/domain"
)

// MatchStore implements domain.MatchStore using PostgreSQL. Fighter snapshots
// and the result are stored as JSONB since they are read back whole.
type MatchStore struct {
	pool *pgxpool.Pool
}

// NewMatchStore creates a MatchStore backed by the given connection pool.
func NewMatchStore(pool *pgxpool.Pool) *MatchStore {
	return &MatchStore{pool: pool}
}

var _ domain.MatchStore = (*MatchStore)(nil)

// Upsert inserts or replaces the match row.
func (s *MatchStore) Upsert(ctx context.Context, m domain.Match) error {
	fighterA, err := json.Marshal(m.FighterA)
	if err != nil {
		return fmt.Errorf("postgres: marshal fighter a: %w", err)
	}
	fighterB, err := json.Marshal(m.FighterB)
	if err != nil {
		return fmt.Errorf("postgres: marshal fighter b: %w", err)
	}
	var result []byte
	if m.Result != nil {
		if result, err = json.Marshal(m.Result); err != nil {
			return fmt.Errorf("postgres: marshal result: %w", err)
		}
	}

	const query = `
		INSERT INTO matches (
			id, phase, fighter_a, fighter_b,
			pool_a, pool_b, total_pool, odds_a, odds_b,
			pool_minimum, pool_met, extensions,
			phase_started_at, phase_ends_at,
			chain_registered, chain_tx_hash, seed, result,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, $12,
			$13, $14,
			$15, $16, $17, $18,
			$19, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			phase            = EXCLUDED.phase,
			pool_a           = EXCLUDED.pool_a,
			pool_b           = EXCLUDED.pool_b,
			total_pool       = EXCLUDED.total_pool,
			odds_a           = EXCLUDED.odds_a,
			odds_b           = EXCLUDED.odds_b,
			pool_met         = EXCLUDED.pool_met,
			extensions       = EXCLUDED.extensions,
			phase_started_at = EXCLUDED.phase_started_at,
			phase_ends_at    = EXCLUDED.phase_ends_at,
			chain_registered = EXCLUDED.chain_registered,
			chain_tx_hash    = EXCLUDED.chain_tx_hash,
			result           = EXCLUDED.result,
			updated_at       = NOW()`

	_, err = s.pool.Exec(ctx, query,
		m.ID, string(m.Phase), fighterA, fighterB,
		m.PoolA, m.PoolB, m.TotalPool, m.OddsA, m.OddsB,
		m.PoolMinimum, m.PoolMet, m.Extensions,
		m.PhaseStartedAt, m.PhaseEndsAt,
		m.ChainRegistered, m.ChainTxHash, m.Seed, result,
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert match %s: %w", m.ID, err)
	}
	return nil
}

const matchCols = `id, phase, fighter_a, fighter_b,
	pool_a, pool_b, total_pool, odds_a, odds_b,
	pool_minimum, pool_met, extensions,
	phase_started_at, phase_ends_at,
	chain_registered, chain_tx_hash, seed, result, created_at`

func scanMatch(row pgx.Row) (domain.Match, error) {
	var m domain.Match
	var phase string
	var fighterA, fighterB, result []byte
	err := row.Scan(
		&m.ID, &phase, &fighterA, &fighterB,
		&m.PoolA, &m.PoolB, &m.TotalPool, &m.OddsA, &m.OddsB,
		&m.PoolMinimum, &m.PoolMet, &m.Extensions,
		&m.PhaseStartedAt, &m.PhaseEndsAt,
		&m.ChainRegistered, &m.ChainTxHash, &m.Seed, &result, &m.CreatedAt,
	)
	if err != nil {
		return domain.Match{}, err
	}
	m.Phase = domain.MatchPhase(phase)
	if err := json.Unmarshal(fighterA, &m.FighterA); err != nil {
		return domain.Match{}, fmt.Errorf("unmarshal fighter a: %w", err)
	}
	if err := json.Unmarshal(fighterB, &m.FighterB); err != nil {
		return domain.Match{}, fmt.Errorf("unmarshal fighter b: %w", err)
	}
	if len(result) > 0 {
		m.Result = &domain.MatchResult{}
		if err := json.Unmarshal(result, m.Result); err != nil {
			return domain.Match{}, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return m, nil
}

// GetByID retrieves a match by its primary key.
func (s *MatchStore) GetByID(ctx context.Context, id string) (domain.Match, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+matchCols+` FROM matches WHERE id = $1`, id)
	m, err := scanMatch(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Match{}, domain.ErrNotFound
		}
		return domain.Match{}, fmt.Errorf("postgres: get match %s: %w", id, err)
	}
	return m, nil
}

// GetLive returns matches left in the betting or fighting phase, newest
// first, for the restart-restore path.
func (s *MatchStore) GetLive(ctx context.Context) ([]domain.Match, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+matchCols+` FROM matches
		 WHERE phase IN ('betting', 'fighting')
		 ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list live matches: %w", err)
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan live match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list live matches rows: %w", err)
	}
	return matches, nil
}

// SetPhase updates just the phase of a match.
func (s *MatchStore) SetPhase(ctx context.Context, id string, phase domain.MatchPhase) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE matches SET phase = $2, updated_at = NOW() WHERE id = $1`,
		id, string(phase))
	if err != nil {
		return fmt.Errorf("postgres: set match %s phase: %w", id, err)
	}
	return nil
}
