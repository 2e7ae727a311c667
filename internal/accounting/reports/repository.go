package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/transitops/fleet-ledger/internal/accounting/shared"
	internalShared "github.com/transitops/fleet-ledger/internal/shared"
)

// Repository streams validated ledger data. Callbacks run while the rows are
// open; returning an error stops the iteration.
type Repository interface {
	Account(ctx context.Context, id int64) (AccountRef, error)
	AccountByCode(ctx context.Context, code string) (AccountRef, error)
	StreamLedger(ctx context.Context, accountID int64, filter Filter, fn func(LedgerLine) error) error
	StreamAccountTotals(ctx context.Context, filter Filter, fn func(AccountTotals) error) error
	StreamVAT(ctx context.Context, from, to time.Time, fn func(VATRow) error) error
	StreamMismatches(ctx context.Context, fn func(Mismatch) error) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) scanAccount(row pgx.Row, format string, args ...any) (AccountRef, error) {
	var a AccountRef
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Class)
	if errors.Is(err, pgx.ErrNoRows) {
		return AccountRef{}, internalShared.NotFoundError(shared.ErrAccountNotFound, format, args...)
	}
	return a, err
}

func (r *repository) Account(ctx context.Context, id int64) (AccountRef, error) {
	return r.scanAccount(r.db.QueryRow(ctx, `SELECT id, code, name, class FROM accounts WHERE id=$1`, id), "id %d", id)
}

func (r *repository) AccountByCode(ctx context.Context, code string) (AccountRef, error) {
	return r.scanAccount(r.db.QueryRow(ctx, `SELECT id, code, name, class FROM accounts WHERE code=$1`, code), "code %s", code)
}

// entryConditions renders the validated-entry predicate for alias e.
func entryConditions(filter Filter, args []any) (string, []any) {
	conds := []string{"e.status = 'validated'"}
	if filter.FiscalYearID != nil {
		args = append(args, *filter.FiscalYearID)
		conds = append(conds, fmt.Sprintf("e.fiscal_year_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conds = append(conds, fmt.Sprintf("e.entry_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conds = append(conds, fmt.Sprintf("e.entry_date <= $%d", len(args)))
	}
	return strings.Join(conds, " AND "), args
}

func (r *repository) StreamLedger(ctx context.Context, accountID int64, filter Filter, fn func(LedgerLine) error) error {
	where, args := entryConditions(filter, []any{accountID})
	rows, err := r.db.Query(ctx, `SELECT e.id, l.id, e.entry_date, e.entry_number,
COALESCE(NULLIF(l.label, ''), e.description), l.debit, l.credit
FROM entry_lines l JOIN entries e ON e.id = l.entry_id
WHERE l.account_id = $1 AND `+where+`
ORDER BY e.id, l.position, l.id`, args...)
	if err != nil {
		return fmt.Errorf("reports: ledger query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var line LedgerLine
		if err := rows.Scan(&line.EntryID, &line.LineID, &line.Date, &line.PieceNumber, &line.Label, &line.Debit, &line.Credit); err != nil {
			return err
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *repository) StreamAccountTotals(ctx context.Context, filter Filter, fn func(AccountTotals) error) error {
	where, args := entryConditions(filter, nil)
	rows, err := r.db.Query(ctx, `SELECT a.id, a.code, a.name, a.class, SUM(l.debit), SUM(l.credit)
FROM entry_lines l
JOIN entries e ON e.id = l.entry_id
JOIN accounts a ON a.id = l.account_id
WHERE `+where+`
GROUP BY a.id, a.code, a.name, a.class
ORDER BY a.code`, args...)
	if err != nil {
		return fmt.Errorf("reports: trial balance query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t AccountTotals
		if err := rows.Scan(&t.AccountID, &t.Code, &t.Name, &t.Class, &t.Debit, &t.Credit); err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *repository) StreamVAT(ctx context.Context, from, to time.Time, fn func(VATRow) error) error {
	rows, err := r.db.Query(ctx, `SELECT a.class, l.tva_rate, l.credit > l.debit AS credit_side, SUM(l.tva_amount)
FROM entry_lines l
JOIN entries e ON e.id = l.entry_id
JOIN accounts a ON a.id = l.account_id
WHERE e.status = 'validated' AND e.entry_date BETWEEN $1 AND $2 AND l.tva_rate > 0
GROUP BY a.class, l.tva_rate, credit_side`, from, to)
	if err != nil {
		return fmt.Errorf("reports: vat query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var row VATRow
		if err := rows.Scan(&row.Class, &row.Rate, &row.CreditSide, &row.Amount); err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *repository) StreamMismatches(ctx context.Context, fn func(Mismatch) error) error {
	rows, err := r.db.Query(ctx, `SELECT e.id, e.entry_number, e.total_debit, e.total_credit,
COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM entries e LEFT JOIN entry_lines l ON l.entry_id = e.id
WHERE e.status = 'validated'
GROUP BY e.id, e.entry_number, e.total_debit, e.total_credit
HAVING e.total_debit <> COALESCE(SUM(l.debit), 0)
    OR e.total_credit <> COALESCE(SUM(l.credit), 0)
    OR ABS(COALESCE(SUM(l.debit), 0) - COALESCE(SUM(l.credit), 0)) >= 0.01
ORDER BY e.id`)
	if err != nil {
		return fmt.Errorf("reports: integrity query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m Mismatch
		if err := rows.Scan(&m.EntryID, &m.EntryNumber, &m.HeaderDebit, &m.HeaderCredit, &m.LineDebit, &m.LineCredit); err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return rows.Err()
}
