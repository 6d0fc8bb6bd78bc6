// Package purchases: repository.go works with credit_packages and
// purchase_orders. Completing an order and crediting it commit together.
package purchases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/db/postgres"
	"lexdesk.app/credits/internal/features/ledger"
)

const orderColumns = `order_id, account_id, package_id, credits, amount::text, currency, status, created_at, completed_at`

type Repository struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db, now: time.Now}
}

// ListPackages returns active packages in display order.
func (r *Repository) ListPackages(ctx context.Context) ([]Package, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, credits, price::text, currency, is_active, sort_order
		FROM credit_packages
		WHERE is_active
		ORDER BY sort_order, id
	`)
	if err != nil {
		return nil, common.StoreError("list packages", err)
	}
	pkgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Package, error) {
		return scanPackage(row)
	})
	if err != nil {
		return nil, common.StoreError("list packages", err)
	}
	return pkgs, nil
}

// GetPackage returns an active package or ErrInvalidReference.
func (r *Repository) GetPackage(ctx context.Context, id string) (Package, error) {
	p, err := scanPackage(r.db.QueryRow(ctx, `
		SELECT id, name, credits, price::text, currency, is_active, sort_order
		FROM credit_packages WHERE id = $1 AND is_active
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Package{}, fmt.Errorf("%w: package %q", common.ErrInvalidReference, id)
	}
	if err != nil {
		return Package{}, common.StoreError("get package", err)
	}
	return p, nil
}

func (r *Repository) CreateOrder(ctx context.Context, o Order) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO purchase_orders (order_id, account_id, package_id, credits, amount, currency, status, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)
	`, o.OrderID, o.AccountID, o.PackageID, o.Credits, o.Amount.StringFixed(2), o.Currency, string(o.Status), o.CreatedAt)
	if err != nil {
		return common.StoreError("create order", err)
	}
	return nil
}

// GetOrder returns the order or ErrInvalidReference.
func (r *Repository) GetOrder(ctx context.Context, orderID string) (Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM purchase_orders WHERE order_id = $1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("%w: order %q", common.ErrInvalidReference, orderID)
	}
	if err != nil {
		return Order{}, common.StoreError("get order", err)
	}
	return o, nil
}

// CompleteOrder flips the order to completed and credits it in one
// transaction. The flip is conditional on status = 'pending', so a
// duplicate webhook gets ErrAlreadyProcessed and credits nothing.
// When this is the account's first completed order and firstBonus > 0,
// a bonus transaction follows the purchase transaction.
func (r *Repository) CompleteOrder(ctx context.Context, orderID string, firstBonus int64) (Order, []ledger.Result, error) {
	var (
		order   Order
		results []ledger.Result
	)
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		now := r.now()

		o, err := scanOrder(tx.QueryRow(ctx,
			`SELECT `+orderColumns+` FROM purchase_orders WHERE order_id = $1`, orderID))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: order %q", common.ErrInvalidReference, orderID)
		}
		if err != nil {
			return common.StoreError("get order", err)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE purchase_orders SET status = 'completed', completed_at = $2
			WHERE order_id = $1 AND status = 'pending'
		`, orderID, now)
		if err != nil {
			return common.StoreError("complete order", err)
		}
		if tag.RowsAffected() == 0 {
			return common.ErrAlreadyProcessed
		}
		o.Status = OrderCompleted
		o.CompletedAt = &now

		// Locks the balance row, which serializes first-purchase checks
		// for the same account.
		res, err := ledger.ApplyDeltaTx(ctx, tx, PurchaseDelta(o), now)
		if err != nil {
			return err
		}
		results = append(results, res)

		if firstBonus > 0 {
			var completed int
			if err := tx.QueryRow(ctx, `
				SELECT COUNT(*) FROM purchase_orders
				WHERE account_id = $1 AND status = 'completed'
			`, o.AccountID).Scan(&completed); err != nil {
				return common.StoreError("count purchases", err)
			}
			if completed == 1 {
				bonus, err := ledger.ApplyDeltaTx(ctx, tx, FirstPurchaseBonusDelta(o, firstBonus), now)
				if err != nil {
					return err
				}
				results = append(results, bonus)
			}
		}

		order = o
		return nil
	})
	if err != nil {
		return Order{}, nil, err
	}
	return order, results, nil
}

// PurchaseDelta is the ledger credit for a completed order.
func PurchaseDelta(o Order) ledger.Delta {
	return ledger.Delta{
		AccountID:    o.AccountID,
		Amount:       o.Credits,
		Type:         ledger.TxPurchase,
		Reference:    ledger.Reference{Type: ledger.RefOrder, ID: o.OrderID},
		Description:  fmt.Sprintf("Purchased %s", common.FormatCredits(o.Credits)),
		Metadata:     map[string]string{"package_id": o.PackageID, "amount": o.Amount.StringFixed(2), "currency": o.Currency},
		MarkPurchase: true,
	}
}

// FirstPurchaseBonusDelta is the one-time bonus for an account's first order.
func FirstPurchaseBonusDelta(o Order, bonus int64) ledger.Delta {
	return ledger.Delta{
		AccountID:   o.AccountID,
		Amount:      bonus,
		Type:        ledger.TxBonus,
		Reference:   ledger.Reference{Type: ledger.RefOrder, ID: o.OrderID},
		Description: "First purchase bonus",
		Metadata:    map[string]string{"bonus": "first_purchase"},
	}
}

func scanPackage(row pgx.Row) (Package, error) {
	var (
		p     Package
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Credits, &price, &p.Currency, &p.Active, &p.SortOrder); err != nil {
		return Package{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return Package{}, fmt.Errorf("parse price %q: %w", price, err)
	}
	p.Price = d
	return p, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		amount string
		status string
	)
	if err := row.Scan(&o.OrderID, &o.AccountID, &o.PackageID, &o.Credits, &amount,
		&o.Currency, &status, &o.CreatedAt, &o.CompletedAt); err != nil {
		return Order{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Order{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	o.Amount = d
	o.Status = OrderStatus(status)
	return o, nil
}
