// Package ledger: repository.go keeps credit_balances and
// credit_transactions in PostgreSQL. Every mutation runs inside one
// database transaction with the balance row locked FOR UPDATE.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/db/postgres"
)

const balanceColumns = `
	account_id, current_balance, total_earned, total_spent,
	current_streak, longest_streak, last_activity_on, last_purchase_at, updated_at`

const transactionColumns = `
	id, account_id, transaction_type, amount, balance_after,
	reference_type, reference_id, description, metadata, created_at`

// Repository is the PostgreSQL ledger store.
type Repository struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// NewRepository creates a ledger repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db, now: time.Now}
}

// GetBalance returns the stored row or a zero balance. It never inserts.
func (r *Repository) GetBalance(ctx context.Context, accountID uuid.UUID) (Balance, error) {
	b, err := scanBalance(r.db.QueryRow(ctx,
		`SELECT `+balanceColumns+` FROM credit_balances WHERE account_id = $1`, accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{AccountID: accountID}, nil
	}
	if err != nil {
		return Balance{}, common.StoreError("get balance", err)
	}
	return b, nil
}

// ApplyDelta applies d in its own database transaction.
func (r *Repository) ApplyDelta(ctx context.Context, d Delta) (Result, error) {
	var res Result
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		res, err = ApplyDeltaTx(ctx, tx, d, r.now())
		return err
	})
	return res, err
}

// ApplyDeltaTx applies d inside an open transaction. Other features call
// it so that their own status flips commit together with the credit.
//
// Steps:
//  1. make sure the balance row exists (it is created on first award)
//  2. lock it FOR UPDATE
//  3. compute the new state with Apply
//  4. write the balance and append the transaction
func ApplyDeltaTx(ctx context.Context, tx pgx.Tx, d Delta, now time.Time) (Result, error) {
	if err := d.Validate(); err != nil {
		return Result{}, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO credit_balances (account_id) VALUES ($1)
		ON CONFLICT (account_id) DO NOTHING
	`, d.AccountID); err != nil {
		return Result{}, common.StoreError("create balance", err)
	}

	b, err := scanBalance(tx.QueryRow(ctx,
		`SELECT `+balanceColumns+` FROM credit_balances WHERE account_id = $1 FOR UPDATE`, d.AccountID))
	if err != nil {
		return Result{}, common.StoreError("lock balance", err)
	}

	txn, err := Apply(&b, d, now)
	if err != nil {
		return Result{}, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE credit_balances
		SET current_balance = $2, total_earned = $3, total_spent = $4,
		    current_streak = $5, longest_streak = $6, last_activity_on = $7,
		    last_purchase_at = $8, updated_at = $9
		WHERE account_id = $1
	`, b.AccountID, b.CurrentBalance, b.TotalEarned, b.TotalSpent,
		b.CurrentStreak, b.LongestStreak, b.LastActivityOn, b.LastPurchaseAt, b.UpdatedAt,
	); err != nil {
		return Result{}, common.StoreError("update balance", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO credit_transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, txn.ID, txn.AccountID, string(txn.Type), txn.Amount, txn.BalanceAfter,
		txn.ReferenceType, txn.ReferenceID, txn.Description, txn.Metadata, txn.CreatedAt,
	); err != nil {
		return Result{}, common.StoreError("insert transaction", err)
	}

	return Result{Balance: b, Transaction: txn}, nil
}

// ListTransactions returns the newest transactions first.
func (r *Repository) ListTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM credit_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, common.StoreError("list transactions", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var (
			t      Transaction
			txType string
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &txType, &t.Amount, &t.BalanceAfter,
			&t.ReferenceType, &t.ReferenceID, &t.Description, &t.Metadata, &t.CreatedAt); err != nil {
			return nil, common.StoreError("scan transaction", err)
		}
		t.Type = TxType(txType)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StoreError("list transactions", err)
	}
	return out, nil
}

// LedgerSnapshot reads the balance row and the sum of the account's log
// in one statement, so both values come from the same snapshot.
func (r *Repository) LedgerSnapshot(ctx context.Context, accountID uuid.UUID) (Balance, int64, error) {
	var (
		b   Balance
		sum int64
	)
	err := r.db.QueryRow(ctx, `
		SELECT `+balanceColumns+`,
		       (SELECT COALESCE(SUM(amount), 0)::BIGINT FROM credit_transactions t
		        WHERE t.account_id = b.account_id)
		FROM credit_balances b WHERE b.account_id = $1
	`, accountID).Scan(&b.AccountID, &b.CurrentBalance, &b.TotalEarned, &b.TotalSpent,
		&b.CurrentStreak, &b.LongestStreak, &b.LastActivityOn, &b.LastPurchaseAt, &b.UpdatedAt, &sum)
	if errors.Is(err, pgx.ErrNoRows) {
		// transactions reference the balance row, so no row means an empty log
		return Balance{AccountID: accountID}, 0, nil
	}
	if err != nil {
		return Balance{}, 0, common.StoreError("ledger snapshot", err)
	}
	return b, sum, nil
}

// AccountIDs returns every account that has a balance row.
func (r *Repository) AccountIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT account_id FROM credit_balances ORDER BY account_id`)
	if err != nil {
		return nil, common.StoreError("list accounts", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, common.StoreError("list accounts", err)
	}
	return ids, nil
}

// BreakStaleStreaks zeroes streaks whose last activity is before yesterday.
func (r *Repository) BreakStaleStreaks(ctx context.Context, now time.Time) (int64, error) {
	yesterday := common.DateOf(now.UTC()).AddDate(0, 0, -1)
	tag, err := r.db.Exec(ctx, `
		UPDATE credit_balances
		SET current_streak = 0, updated_at = NOW()
		WHERE current_streak > 0 AND last_activity_on < $1
	`, yesterday)
	if err != nil {
		return 0, common.StoreError("break streaks", err)
	}
	return tag.RowsAffected(), nil
}

func scanBalance(row pgx.Row) (Balance, error) {
	var b Balance
	err := row.Scan(&b.AccountID, &b.CurrentBalance, &b.TotalEarned, &b.TotalSpent,
		&b.CurrentStreak, &b.LongestStreak, &b.LastActivityOn, &b.LastPurchaseAt, &b.UpdatedAt)
	return b, err
}
