package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultCalcWorkers = 4

type Service struct {
	store   StoreAPI
	calc    *Calculator
	workers int
	now     func() time.Time
}

func NewService(store StoreAPI, calc *Calculator, workers int) *Service {
	if calc == nil {
		calc = NewCalculator(nil)
	}
	if workers <= 0 {
		workers = defaultCalcWorkers
	}
	return &Service{store: store, calc: calc, workers: workers, now: time.Now}
}

func (s *Service) CreateRun(ctx context.Context, weekEnding time.Time) (Run, error) {
	if weekEnding.IsZero() {
		return Run{}, &ValidationError{Field: FieldWeekEnding, Reason: "is required"}
	}
	return s.store.CreateRun(ctx, weekEnding)
}

// GetRun returns the run with its items in caller order.
func (s *Service) GetRun(ctx context.Context, runID string) (Run, []LineItem, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return Run{}, nil, err
	}
	items, err := s.store.ListItems(ctx, runID)
	if err != nil {
		return Run{}, nil, err
	}
	return run, items, nil
}

func (s *Service) SetWeekEnding(ctx context.Context, runID string, weekEnding time.Time) (Run, error) {
	if weekEnding.IsZero() {
		return Run{}, &ValidationError{Field: FieldWeekEnding, Reason: "is required"}
	}
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return Run{}, err
	}
	if err := run.SetWeekEnding(weekEnding); err != nil {
		return Run{}, err
	}
	if err := s.store.UpdateRun(ctx, run, RunStatusDraft); err != nil {
		return Run{}, err
	}
	return run, nil
}

func (s *Service) AddItem(ctx context.Context, runID string, in Inputs) (LineItem, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return LineItem{}, err
	}
	if run.Status != RunStatusDraft {
		return LineItem{}, ErrItemFrozen
	}
	if err := validateInputs(in); err != nil {
		return LineItem{}, err
	}
	return s.store.CreateItem(ctx, runID, in)
}

// UpdateItem replaces every input of an item. Computed pay is dropped until the
// next Calculate.
func (s *Service) UpdateItem(ctx context.Context, runID, itemID string, in Inputs) (LineItem, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return LineItem{}, err
	}
	item, err := s.store.GetItem(ctx, runID, itemID)
	if err != nil {
		return LineItem{}, err
	}
	if err := item.ApplyInputs(run.Status, in); err != nil {
		return LineItem{}, err
	}
	if err := validateInputs(in); err != nil {
		return LineItem{}, err
	}
	if err := s.store.UpdateItemInputs(ctx, item); err != nil {
		return LineItem{}, err
	}
	return item, nil
}

// Calculate computes every item of a draft run in parallel and persists the
// results in one transaction. Nothing is saved if any item fails.
func (s *Service) Calculate(ctx context.Context, runID string) ([]LineItem, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != RunStatusDraft {
		return nil, ErrItemFrozen
	}
	items, err := s.store.ListItems(ctx, runID)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := s.calc.Calculate(&items[i]); err != nil {
				return fmt.Errorf("item %d (%s): %w", i+1, items[i].Label(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.store.SaveComputed(ctx, runID, items); err != nil {
		return nil, err
	}
	slog.Info("payroll calculated", "runId", runID, "items", len(items))
	return items, nil
}

// Finalize freezes the run. Every item must carry computed pay.
func (s *Service) Finalize(ctx context.Context, runID string) (Run, error) {
	items, err := s.store.ListItems(ctx, runID)
	if err != nil {
		return Run{}, err
	}
	for i, item := range items {
		if !item.Calculated() {
			return Run{}, fmt.Errorf("item %d (%s): %w", i+1, item.Label(), ErrNotCalculated)
		}
	}
	return s.transition(ctx, runID, RunStatusFinalized)
}

func (s *Service) MarkExported(ctx context.Context, runID string) (Run, error) {
	return s.transition(ctx, runID, RunStatusExported)
}

func (s *Service) MarkPaid(ctx context.Context, runID string) (Run, error) {
	return s.transition(ctx, runID, RunStatusPaid)
}

func (s *Service) ListExports(ctx context.Context, runID string) ([]ExportRecord, error) {
	if _, err := s.store.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	return s.store.ListExports(ctx, runID)
}

func (s *Service) transition(ctx context.Context, runID string, to RunStatus) (Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return Run{}, err
	}
	from := run.Status
	if err := run.Transition(to, s.now()); err != nil {
		return Run{}, fmt.Errorf("%s -> %s: %w", from, to, err)
	}
	if err := s.store.UpdateRun(ctx, run, from); err != nil {
		return Run{}, err
	}
	slog.Info("payroll run status changed", "runId", runID, "from", string(from), "to", string(to))
	return run, nil
}

func validateInputs(in Inputs) error {
	if strings.TrimSpace(in.EmployeeName) == "" {
		return &ValidationError{Field: FieldEmployeeName, Reason: "is required"}
	}
	if in.AccountType != "" && in.AccountType != AccountTypeChecking && in.AccountType != AccountTypeSavings {
		return &ValidationError{Item: in.EmployeeName, Field: FieldAccountType, Reason: "must be checking or savings"}
	}
	return Validate(in)
}
