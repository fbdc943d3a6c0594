package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentfight/arena/internal/domain"
)

// AgentStore implements domain.AgentStore using PostgreSQL.
type AgentStore struct {
	pool *pgxpool.Pool
}

// NewAgentStore creates an AgentStore backed by the given connection pool.
func NewAgentStore(pool *pgxpool.Pool) *AgentStore {
	return &AgentStore{pool: pool}
}

var _ domain.AgentStore = (*AgentStore)(nil)

// Upsert inserts or updates a registered agent.
func (s *AgentStore) Upsert(ctx context.Context, a domain.Agent) error {
	equipment, err := json.Marshal(a.Equipment)
	if err != nil {
		return fmt.Errorf("postgres: marshal equipment: %w", err)
	}

	const query = `
		INSERT INTO agents (
			id, name, avatar, wallet, power_rating, strategy, equipment,
			wins, losses, earnings, eligible, registered_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			name         = EXCLUDED.name,
			avatar       = EXCLUDED.avatar,
			wallet       = EXCLUDED.wallet,
			power_rating = EXCLUDED.power_rating,
			strategy     = EXCLUDED.strategy,
			equipment    = EXCLUDED.equipment,
			eligible     = EXCLUDED.eligible,
			updated_at   = NOW()`

	_, err = s.pool.Exec(ctx, query,
		a.ID, a.Name, a.Avatar, a.Wallet, a.PowerRating, string(a.Strategy), equipment,
		a.Wins, a.Losses, a.Earnings, a.Eligible, a.RegisteredAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert agent %s: %w", a.ID, err)
	}
	return nil
}

const agentCols = `id, name, avatar, wallet, power_rating, strategy, equipment,
	wins, losses, earnings, eligible, registered_at, updated_at`

func scanAgent(row pgx.Row) (domain.Agent, error) {
	var a domain.Agent
	var strategy string
	var equipment []byte
	err := row.Scan(
		&a.ID, &a.Name, &a.Avatar, &a.Wallet, &a.PowerRating, &strategy, &equipment,
		&a.Wins, &a.Losses, &a.Earnings, &a.Eligible, &a.RegisteredAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Agent{}, err
	}
	a.Strategy = domain.FightStrategy(strategy)
	if len(equipment) > 0 {
		if err := json.Unmarshal(equipment, &a.Equipment); err != nil {
			return domain.Agent{}, fmt.Errorf("unmarshal equipment: %w", err)
		}
	}
	return a, nil
}

// GetByID retrieves an agent by its primary key.
func (s *AgentStore) GetByID(ctx context.Context, id string) (domain.Agent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+agentCols+` FROM agents WHERE id = $1`, id)
	a, err := scanAgent(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Agent{}, domain.ErrNotFound
		}
		return domain.Agent{}, fmt.Errorf("postgres: get agent %s: %w", id, err)
	}
	return a, nil
}

// ListEligible returns all agents currently eligible for selection.
func (s *AgentStore) ListEligible(ctx context.Context) ([]domain.Agent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+agentCols+` FROM agents WHERE eligible ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list eligible agents: %w", err)
	}
	defer rows.Close()
	return collectAgents(rows)
}

// List returns agents with pagination, ordered by earnings for the
// leaderboard view.
func (s *AgentStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Agent, error) {
	query := `SELECT ` + agentCols + ` FROM agents ORDER BY earnings DESC, wins DESC`
	args := []any{}
	argIdx := 1

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
		return nil, fmt.Errorf("postgres: list agents: %w", err)
	}
	defer rows.Close()
	return collectAgents(rows)
}

func collectAgents(rows pgx.Rows) ([]domain.Agent, error) {
	var agents []domain.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: agent rows: %w", err)
	}
	return agents, nil
}

// RecordOutcome applies a win/loss and earnings delta to an agent.
func (s *AgentStore) RecordOutcome(ctx context.Context, id string, won bool, earnings float64) error {
	const query = `
		UPDATE agents SET
			wins       = wins + CASE WHEN $2 THEN 1 ELSE 0 END,
			losses     = losses + CASE WHEN $2 THEN 0 ELSE 1 END,
			earnings   = earnings + $3,
			updated_at = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, won, earnings)
	if err != nil {
		return fmt.Errorf("postgres: record outcome for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
