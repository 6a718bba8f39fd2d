package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"crewpay/internal/domain/payroll"
	"crewpay/internal/export/ach"
	"crewpay/internal/export/certified"
	"crewpay/internal/export/summary"
	"crewpay/internal/platform/metrics"
	"crewpay/internal/platform/storage"
)

type Kind string

const (
	KindCertified  Kind = "certified"
	KindSummary    Kind = "summary"
	KindSummaryCSV Kind = "summary-csv"
	KindACH        Kind = "ach"
)

var (
	ErrUnknownKind      = errors.New("export: unknown kind")
	ErrACHNotConfigured = errors.New("export: ACH originator is not configured")
)

var kinds = map[Kind]struct {
	ext         string
	contentType string
}{
	KindCertified:  {"pdf", "application/pdf"},
	KindSummary:    {"xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	KindSummaryCSV: {"csv", "text/csv; charset=utf-8"},
	KindACH:        {"ach", "text/plain; charset=us-ascii"},
}

func ParseKind(value string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := kinds[kind]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, value)
	}
	return kind, nil
}

func (k Kind) Ext() string { return kinds[k].ext }

func (k Kind) ContentType() string { return kinds[k].contentType }

// FileName is the artifact name used on disk and in downloads.
func (k Kind) FileName(run payroll.Run) string {
	name := "payroll-" + run.WeekEnding.Format("2006-01-02")
	if k == KindSummaryCSV {
		name += "-summary"
	} else {
		name += "-" + string(k)
	}
	return name + "." + k.Ext()
}

type RunService interface {
	GetRun(ctx context.Context, runID string) (payroll.Run, []payroll.LineItem, error)
	MarkExported(ctx context.Context, runID string) (payroll.Run, error)
}

type Recorder interface {
	RecordExport(ctx context.Context, record payroll.ExportRecord) error
}

type Options struct {
	Dir       string
	Certified certified.Options
	// ACH is nil when no originator is configured.
	ACH     *ach.Exporter
	Metrics *metrics.Collector
}

// Result is one written artifact. ACH and Verified are set for ACH exports.
type Result struct {
	Kind     Kind
	Run      payroll.Run
	Artifact storage.Artifact
	Data     []byte
	ACH      *ach.Result
	Verified *ach.Summary
}

type Service struct {
	runs      RunService
	records   Recorder
	dir       string
	certified *certified.Exporter
	ach       *ach.Exporter
	metrics   *metrics.Collector
}

func NewService(runs RunService, records Recorder, opts Options) *Service {
	dir := opts.Dir
	if dir == "" {
		dir = "exports"
	}
	return &Service{
		runs:      runs,
		records:   records,
		dir:       dir,
		certified: certified.New(opts.Certified),
		ach:       opts.ACH,
		metrics:   opts.Metrics,
	}
}

// Export renders the run as kind, writes it under Dir/<runID>/ and records
// it. A finalized run moves to exported on the first successful export.
func (s *Service) Export(ctx context.Context, runID string, kind Kind) (Result, error) {
	res, err := s.export(ctx, runID, kind)
	if s.metrics != nil {
		excluded := 0
		if res.ACH != nil {
			excluded = len(res.ACH.Failures)
		}
		s.metrics.RecordExport(string(kind), excluded, err)
	}
	if err != nil {
		slog.Warn("payroll export failed", "runId", runID, "kind", string(kind), "err", err)
		return Result{}, err
	}
	return res, nil
}

func (s *Service) export(ctx context.Context, runID string, kind Kind) (Result, error) {
	if _, ok := kinds[kind]; !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if kind == KindACH && s.ach == nil {
		return Result{}, ErrACHNotConfigured
	}

	run, items, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return Result{}, err
	}
	if !run.Exportable() {
		return Result{}, payroll.ErrRunNotFinalized
	}
	if err := payroll.RequireCalculated(items); err != nil {
		return Result{}, err
	}

	res := Result{Kind: kind, Run: run}
	var buf bytes.Buffer
	switch kind {
	case KindCertified:
		err = s.certified.Export(&buf, run, items)
	case KindSummary:
		err = summary.Export(&buf, run, items)
	case KindSummaryCSV:
		err = summary.ExportCSV(&buf, run, items)
	case KindACH:
		var achRes ach.Result
		achRes, err = s.ach.Export(&buf, run, items)
		if err == nil {
			res.ACH = &achRes
			var sum ach.Summary
			sum, err = ach.Verify(bytes.NewReader(buf.Bytes()))
			if err != nil {
				err = fmt.Errorf("export: generated ACH file failed verification: %w", err)
			}
			res.Verified = &sum
		}
	}
	if err != nil {
		return Result{}, err
	}
	res.Data = buf.Bytes()

	path := filepath.Join(s.dir, run.ID, kind.FileName(run))
	artifact, err := storage.WriteFile(path, func(w io.Writer) error {
		_, err := w.Write(res.Data)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	res.Artifact = artifact

	record := payroll.ExportRecord{
		RunID:      run.ID,
		Kind:       string(kind),
		Path:       artifact.Path,
		Checksum:   artifact.Checksum,
		Bytes:      artifact.Bytes,
		EntryCount: len(items),
	}
	if res.ACH != nil {
		record.EntryCount = res.ACH.EntryCount
		record.ExcludedCount = len(res.ACH.Failures)
		for _, failure := range res.ACH.Failures {
			slog.Warn("ach item excluded", "runId", run.ID, "item", failure.ItemID, "field", failure.Field, "err", failure.Err)
		}
	}
	if err := s.records.RecordExport(ctx, record); err != nil {
		return Result{}, fmt.Errorf("record export: %w", err)
	}

	if run.Status == payroll.RunStatusFinalized {
		updated, err := s.runs.MarkExported(ctx, run.ID)
		if err != nil {
			return Result{}, err
		}
		res.Run = updated
	}

	slog.Info("payroll export written",
		"runId", run.ID,
		"kind", string(kind),
		"path", artifact.Path,
		"checksum", artifact.Checksum,
		"bytes", artifact.Bytes,
		"excluded", record.ExcludedCount,
	)
	return res, nil
}
