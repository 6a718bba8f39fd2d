package payroll

import (
	"context"
	"time"
)

type StoreAPI interface {
	CreateRun(ctx context.Context, weekEnding time.Time) (Run, error)
	GetRun(ctx context.Context, runID string) (Run, error)
	UpdateRun(ctx context.Context, run Run, from RunStatus) error
	ListItems(ctx context.Context, runID string) ([]LineItem, error)
	GetItem(ctx context.Context, runID, itemID string) (LineItem, error)
	CreateItem(ctx context.Context, runID string, in Inputs) (LineItem, error)
	UpdateItemInputs(ctx context.Context, item LineItem) error
	SaveComputed(ctx context.Context, runID string, items []LineItem) error
	RecordExport(ctx context.Context, record ExportRecord) error
	ListExports(ctx context.Context, runID string) ([]ExportRecord, error)
}

type ExportRecord struct {
	ID            string    `json:"id"`
	RunID         string    `json:"runId"`
	Kind          string    `json:"kind"`
	Path          string    `json:"path"`
	Checksum      string    `json:"checksum"`
	Bytes         int64     `json:"bytes"`
	EntryCount    int       `json:"entryCount"`
	ExcludedCount int       `json:"excludedCount"`
	CreatedAt     time.Time `json:"createdAt"`
}
