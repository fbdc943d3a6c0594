package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentfight/arena/internal/domain"
)

// BetStore implements domain.BetStore using PostgreSQL.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

var _ domain.BetStore = (*BetStore)(nil)

// Add persists an accepted bet. Conflicting ids are ignored: the ledger
// already deduplicated, so a replayed insert is a restart artifact.
func (s *BetStore) Add(ctx context.Context, b domain.Bet) error {
	const query = `
		INSERT INTO bets (id, match_id, side, amount, address, tx_hash, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		b.ID, b.MatchID, string(b.Side), b.Amount, b.Address, b.TxHash, b.PlacedAt)
	if err != nil {
		return fmt.Errorf("postgres: add bet %s: %w", b.ID, err)
	}
	return nil
}

const betCols = `id, match_id, side, amount, address, tx_hash, placed_at`

func collectBets(rows pgx.Rows) ([]domain.Bet, error) {
	var bets []domain.Bet
	for rows.Next() {
		var b domain.Bet
		var side string
		if err := rows.Scan(&b.ID, &b.MatchID, &side, &b.Amount, &b.Address, &b.TxHash, &b.PlacedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		b.Side = domain.Side(side)
		bets = append(bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: bet rows: %w", err)
	}
	return bets, nil
}

// ListByMatch returns the bets for one match in placement order.
func (s *BetStore) ListByMatch(ctx context.Context, matchID string) ([]domain.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+betCols+` FROM bets WHERE match_id = $1 ORDER BY placed_at`, matchID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets for %s: %w", matchID, err)
	}
	defer rows.Close()
	return collectBets(rows)
}

// ListBefore returns bets placed strictly before the cutoff, for archival.
func (s *BetStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+betCols+` FROM bets WHERE placed_at < $1 ORDER BY placed_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets before %s: %w", before, err)
	}
	defer rows.Close()
	return collectBets(rows)
}

// DeleteBefore removes bets placed strictly before the cutoff.
func (s *BetStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM bets WHERE placed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete bets before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}
