package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const itemColumns = `
    id, run_id, position, employee_name, classification, davis_bacon,
    base_rate::text, fringe_rate::text, hours_regular::text, hours_ot::text,
    COALESCE(deductions, '{}'::jsonb), COALESCE(bank_routing, ''), bank_account_enc,
    COALESCE(account_type, 'checking'), COALESCE(employee_ref, ''),
    gross_regular, gross_ot, gross_pay, fringe_pay, taxes, deductions_total, net_pay,
    COALESCE(tax_breakdown, '[]'::jsonb)
`

func (s *Store) CreateRun(ctx context.Context, weekEnding time.Time) (Run, error) {
	run := Run{ID: uuid.NewString(), WeekEnding: dateOnly(weekEnding), Status: RunStatusDraft}
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO payroll_runs (id, week_ending, status)
    VALUES ($1,$2,$3)
    RETURNING created_at
  `, run.ID, run.WeekEnding, string(run.Status)).Scan(&run.CreatedAt); err != nil {
		return Run{}, err
	}
	return run, nil
}

func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	var run Run
	var status string
	err := s.DB.QueryRow(ctx, `
    SELECT id, week_ending, status, created_at, finalized_at
    FROM payroll_runs
    WHERE id = $1
  `, runID).Scan(&run.ID, &run.WeekEnding, &status, &run.CreatedAt, &run.FinalizedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, err
	}
	run.Status = RunStatus(status)
	return run, nil
}

// UpdateRun writes the run only if its stored status is still from. Leaving
// draft for finalized also requires every item to carry computed pay.
func (s *Store) UpdateRun(ctx context.Context, run Run, from RunStatus) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM payroll_runs WHERE id = $1 FOR UPDATE`, run.ID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRunNotFound
		}
		if err != nil {
			return err
		}
		if RunStatus(status) != from {
			return fmt.Errorf("expected %s, found %s: %w", from, status, ErrRunChanged)
		}
		if from == RunStatusDraft && run.Status == RunStatusFinalized {
			var pending int
			if err := tx.QueryRow(ctx, `
        SELECT count(*) FROM payroll_line_items WHERE run_id = $1 AND gross_pay IS NULL
      `, run.ID).Scan(&pending); err != nil {
				return err
			}
			if pending > 0 {
				return fmt.Errorf("%d items: %w", pending, ErrNotCalculated)
			}
		}
		_, err = tx.Exec(ctx, `
      UPDATE payroll_runs SET week_ending = $1, status = $2, finalized_at = $3, updated_at = now()
      WHERE id = $4
    `, run.WeekEnding, string(run.Status), run.FinalizedAt, run.ID)
		return err
	})
}

func (s *Store) ListItems(ctx context.Context, runID string) ([]LineItem, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+itemColumns+`
    FROM payroll_line_items
    WHERE run_id = $1
    ORDER BY position, id
  `, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		item, err := s.scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) GetItem(ctx context.Context, runID, itemID string) (LineItem, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+itemColumns+`
    FROM payroll_line_items
    WHERE run_id = $1 AND id = $2
  `, runID, itemID)
	item, err := s.scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return LineItem{}, ErrItemNotFound
	}
	return item, err
}

func (s *Store) CreateItem(ctx context.Context, runID string, in Inputs) (LineItem, error) {
	deductionsJSON, err := json.Marshal(in.Deductions)
	if err != nil {
		return LineItem{}, err
	}
	accountEnc, err := s.crypto.SealString(in.BankAccount)
	if err != nil {
		return LineItem{}, fmt.Errorf("seal bank account: %w", err)
	}

	item := LineItem{ID: uuid.NewString(), RunID: runID, Inputs: in}
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockDraft(ctx, tx, runID, true); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
      INSERT INTO payroll_line_items (id, run_id, position, employee_name, classification, davis_bacon,
        base_rate, fringe_rate, hours_regular, hours_ot, deductions,
        bank_routing, bank_account_enc, account_type, employee_ref)
      VALUES ($1, $2,
        (SELECT COALESCE(MAX(position), 0) + 1 FROM payroll_line_items WHERE run_id = $2),
        $3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
      RETURNING position
    `, item.ID, runID, in.EmployeeName, in.Classification, in.DavisBacon,
			in.BaseRate.String(), in.FringeRate.String(), in.HoursRegular.String(), in.HoursOT.String(), deductionsJSON,
			nullIfEmpty(in.BankRouting), accountEnc, accountTypeOrDefault(in.AccountType), nullIfEmpty(in.EmployeeRef),
		).Scan(&item.Position)
	})
	if err != nil {
		return LineItem{}, err
	}
	return item, nil
}

// UpdateItemInputs writes new inputs and clears every computed column.
func (s *Store) UpdateItemInputs(ctx context.Context, item LineItem) error {
	deductionsJSON, err := json.Marshal(item.Deductions)
	if err != nil {
		return err
	}
	accountEnc, err := s.crypto.SealString(item.BankAccount)
	if err != nil {
		return fmt.Errorf("seal bank account: %w", err)
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockDraft(ctx, tx, item.RunID, false); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
      UPDATE payroll_line_items
      SET employee_name = $1, classification = $2, davis_bacon = $3,
          base_rate = $4, fringe_rate = $5, hours_regular = $6, hours_ot = $7, deductions = $8,
          bank_routing = $9, bank_account_enc = $10, account_type = $11, employee_ref = $12,
          gross_regular = NULL, gross_ot = NULL, gross_pay = NULL, fringe_pay = NULL, taxes = NULL,
          deductions_total = NULL, net_pay = NULL, tax_breakdown = NULL, computed_at = NULL
      WHERE id = $13 AND run_id = $14
    `, item.EmployeeName, item.Classification, item.DavisBacon,
			item.BaseRate.String(), item.FringeRate.String(), item.HoursRegular.String(), item.HoursOT.String(), deductionsJSON,
			nullIfEmpty(item.BankRouting), accountEnc, accountTypeOrDefault(item.AccountType), nullIfEmpty(item.EmployeeRef),
			item.ID, item.RunID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrItemNotFound
		}
		return nil
	})
}

// SaveComputed persists computed pay for every item in one transaction. The
// run must still be a draft when the transaction takes its lock.
func (s *Store) SaveComputed(ctx context.Context, runID string, items []LineItem) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockDraft(ctx, tx, runID, false); err != nil {
			return err
		}
		for _, item := range items {
			if item.Computed == nil {
				return fmt.Errorf("item %s: %w", item.Label(), ErrNotCalculated)
			}
			breakdownJSON, err := json.Marshal(item.Computed.Breakdown)
			if err != nil {
				return err
			}
			c := item.Computed
			tag, err := tx.Exec(ctx, `
        UPDATE payroll_line_items
        SET gross_regular = $1, gross_ot = $2, gross_pay = $3, fringe_pay = $4, taxes = $5,
            deductions_total = $6, net_pay = $7, tax_breakdown = $8, computed_at = now()
        WHERE id = $9 AND run_id = $10
      `, int64(c.GrossRegular), int64(c.GrossOvertime), int64(c.Gross), int64(c.Fringe), int64(c.Taxes),
				int64(c.DeductionsTotal), int64(c.Net), breakdownJSON, item.ID, runID)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("item %s: %w", item.Label(), ErrItemNotFound)
			}
		}
		return nil
	})
}

func (s *Store) RecordExport(ctx context.Context, record ExportRecord) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO payroll_exports (id, run_id, kind, path, checksum, bytes, entry_count, excluded_count)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
  `, uuid.NewString(), record.RunID, record.Kind, record.Path, record.Checksum, record.Bytes, record.EntryCount, record.ExcludedCount)
	return err
}

func (s *Store) ListExports(ctx context.Context, runID string) ([]ExportRecord, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, run_id, kind, path, checksum, bytes, entry_count, excluded_count, created_at
    FROM payroll_exports
    WHERE run_id = $1
    ORDER BY created_at DESC
  `, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExportRecord
	for rows.Next() {
		var record ExportRecord
		if err := rows.Scan(&record.ID, &record.RunID, &record.Kind, &record.Path, &record.Checksum, &record.Bytes, &record.EntryCount, &record.ExcludedCount, &record.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func (s *Store) scanItem(row pgx.Row) (LineItem, error) {
	var item LineItem
	var baseRate, fringeRate, hoursRegular, hoursOT *string
	var deductionsRaw, breakdownRaw, accountEnc []byte
	var grossRegular, grossOT, gross, fringe, taxes, deductionsTotal, net *int64
	if err := row.Scan(&item.ID, &item.RunID, &item.Position, &item.EmployeeName, &item.Classification, &item.DavisBacon,
		&baseRate, &fringeRate, &hoursRegular, &hoursOT,
		&deductionsRaw, &item.BankRouting, &accountEnc, &item.AccountType, &item.EmployeeRef,
		&grossRegular, &grossOT, &gross, &fringe, &taxes, &deductionsTotal, &net,
		&breakdownRaw); err != nil {
		return LineItem{}, err
	}

	var errs ValidationErrors
	parse := func(field string, raw *string) decimal.Decimal {
		if raw == nil {
			errs = append(errs, &ValidationError{Item: item.ID, Field: field, Reason: "is missing"})
			return decimal.Zero
		}
		value, err := decimal.NewFromString(*raw)
		if err != nil {
			errs = append(errs, &ValidationError{Item: item.ID, Field: field, Reason: "is not a number"})
			return decimal.Zero
		}
		return value
	}
	item.BaseRate = parse(FieldBaseRate, baseRate)
	item.FringeRate = parse(FieldFringeRate, fringeRate)
	item.HoursRegular = parse(FieldHoursRegular, hoursRegular)
	item.HoursOT = parse(FieldHoursOT, hoursOT)
	if len(errs) > 0 {
		return LineItem{}, errs
	}

	if err := json.Unmarshal(deductionsRaw, &item.Deductions); err != nil {
		return LineItem{}, fmt.Errorf("item %s: decode deductions: %w", item.ID, err)
	}
	account, err := s.crypto.OpenString(accountEnc)
	if err != nil {
		return LineItem{}, fmt.Errorf("item %s: open bank account: %w", item.ID, err)
	}
	item.BankAccount = account

	if gross != nil {
		computed := ComputedPay{
			GrossRegular:    moneyOrZero(grossRegular),
			GrossOvertime:   moneyOrZero(grossOT),
			Gross:           Money(*gross),
			Fringe:          moneyOrZero(fringe),
			Taxes:           moneyOrZero(taxes),
			DeductionsTotal: moneyOrZero(deductionsTotal),
			Net:             moneyOrZero(net),
		}
		if err := json.Unmarshal(breakdownRaw, &computed.Breakdown); err != nil {
			return LineItem{}, fmt.Errorf("item %s: decode tax breakdown: %w", item.ID, err)
		}
		item.Computed = &computed
	}
	return item, nil
}

func moneyOrZero(value *int64) Money {
	if value == nil {
		return 0
	}
	return Money(*value)
}

func accountTypeOrDefault(value string) string {
	if value == AccountTypeSavings {
		return AccountTypeSavings
	}
	return AccountTypeChecking
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
