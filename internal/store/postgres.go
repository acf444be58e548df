package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ActivateLLC/arbi-sub000/internal/model"
)

// PostgresStore implements Store using PostgreSQL for durability across
// restarts. All monetary values are stored as NUMERIC for exact decimal
// precision; the full opportunity document rides along as JSONB so scout
// metadata and score flags survive round-trips without a column per field.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) UpsertOpportunity(ctx context.Context, t *model.TrackedOpportunity) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal opportunity %s: %w", t.Opportunity.ID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO opportunities (id, source, type, status, score, buy_price, expires_at, updated_at, doc)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7, $8, $9::JSONB)
		 ON CONFLICT (id) DO UPDATE SET
		   source = EXCLUDED.source, type = EXCLUDED.type, status = EXCLUDED.status,
		   score = EXCLUDED.score, buy_price = EXCLUDED.buy_price,
		   expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at,
		   doc = EXCLUDED.doc`,
		t.Opportunity.ID, t.Opportunity.Source, t.Opportunity.Type, t.Status,
		t.Score.Score, t.Opportunity.BuyPrice.String(),
		t.Opportunity.ExpiresAt, t.UpdatedAt, doc,
	)
	return err
}

func (s *PostgresStore) GetOpportunity(ctx context.Context, id string) (*model.TrackedOpportunity, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM opportunities WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get opportunity %s: %w", id, err)
	}

	var t model.TrackedOpportunity
	if err := json.Unmarshal(doc, &t); err != nil {
		return nil, fmt.Errorf("decode opportunity %s: %w", id, err)
	}
	return &t, nil
}

func (s *PostgresStore) ListOpportunities(ctx context.Context) ([]model.TrackedOpportunity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT doc FROM opportunities ORDER BY score DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.TrackedOpportunity
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var t model.TrackedOpportunity
		if err := json.Unmarshal(doc, &t); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE opportunities
		 SET status = $2, updated_at = $3,
		     doc = jsonb_set(jsonb_set(doc, '{status}', to_jsonb($2::TEXT)), '{updated_at}', to_jsonb($3::TIMESTAMPTZ))
		 WHERE id = $1`,
		id, status, now,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM opportunities WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) InsertPurchase(ctx context.Context, p *model.Purchase) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO purchases (id, opportunity_id, user_id, cost, timestamp)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5)`,
		p.ID, p.OpportunityID, p.UserID, p.Cost.String(), p.Timestamp,
	)
	return err
}

func (s *PostgresStore) ListPurchasesByUser(ctx context.Context, userID string) ([]model.Purchase, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, opportunity_id, user_id, cost::TEXT, timestamp
		 FROM purchases WHERE user_id = $1 ORDER BY timestamp`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []model.Purchase
	for rows.Next() {
		var p model.Purchase
		var costS string
		if err := rows.Scan(&p.ID, &p.OpportunityID, &p.UserID, &costS, &p.Timestamp); err != nil {
			return nil, err
		}
		p.Cost, _ = decimal.NewFromString(costS)
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}
