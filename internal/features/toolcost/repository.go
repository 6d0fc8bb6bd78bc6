// Package toolcost: repository.go reads and seeds the tool_costs table.
package toolcost

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/db/postgres"
)

// Repository is the PostgreSQL source of the price list.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// LoadToolCosts returns every row, inactive ones included.
func (r *Repository) LoadToolCosts(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT tool_type, name, credit_cost, is_active FROM tool_costs ORDER BY tool_type`)
	if err != nil {
		return nil, common.StoreError("load tool costs", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.ToolType, &e.Name, &e.CreditCost, &e.Active)
		return e, err
	})
	if err != nil {
		return nil, common.StoreError("load tool costs", err)
	}
	return entries, nil
}

// UpsertToolCosts writes entries in one transaction.
func (r *Repository) UpsertToolCosts(ctx context.Context, entries []Entry) error {
	return postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		for _, e := range entries {
			if _, err := tx.Exec(ctx, `
				INSERT INTO tool_costs (tool_type, name, credit_cost, is_active)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (tool_type) DO UPDATE
				SET name = EXCLUDED.name, credit_cost = EXCLUDED.credit_cost,
				    is_active = EXCLUDED.is_active, updated_at = NOW()
			`, e.ToolType, e.Name, e.CreditCost, e.Active); err != nil {
				return common.StoreError("upsert tool cost", err)
			}
		}
		return nil
	})
}
