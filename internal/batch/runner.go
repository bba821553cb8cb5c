package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/lai-prep-bridge/internal/domain"
	"github.com/lai-prep-bridge/internal/report"
	"github.com/lai-prep-bridge/internal/service"
)

// DefaultWorkers is the number of rows assessed concurrently when no worker
// count is given.
const DefaultWorkers = 4

// Result is the outcome for one input row. Err is set when the row could not
// be parsed, assessed or written; the other fields are then partial.
type Result struct {
	Row        int
	PatientID  string
	Profile    domain.PatientProfile
	Assessment *domain.Assessment
	Document   *report.Document
	OutputPath string
	Err        error
}

// OK reports whether the row was assessed and written.
func (r Result) OK() bool {
	return r.Err == nil
}

// Run holds every row result of one batch, in input order.
type Run struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Results   []Result
}

// Succeeded returns the results without errors.
func (r *Run) Succeeded() []Result {
	out := make([]Result, 0, len(r.Results))
	for _, res := range r.Results {
		if res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Failed returns the results with errors.
func (r *Run) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Runner assesses CSV rows with a shared engine and writes one JSON export
// per patient into its output directory.
type Runner struct {
	engine    *service.Engine
	outputDir string
	workers   int
	logger    *logrus.Logger
	now       func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkers sets the maximum number of rows assessed at once. Values below
// one are ignored.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithLogger sets the logger used for progress and row failures.
func WithLogger(logger *logrus.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the time source used to stamp exports.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner creates a runner writing into outputDir.
func NewRunner(engine *service.Engine, outputDir string, opts ...RunnerOption) (*Runner, error) {
	if engine == nil {
		return nil, errors.New("batch: engine is required")
	}
	if outputDir == "" {
		return nil, errors.New("batch: output directory is required")
	}

	r := &Runner{
		engine:    engine,
		outputDir: outputDir,
		workers:   DefaultWorkers,
		logger:    logrus.StandardLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run assesses every row. A failing row is recorded in its Result and does
// not stop the others; the returned error is only set when the output
// directory cannot be created or ctx is cancelled.
func (r *Runner) Run(ctx context.Context, rows []Row) (*Run, error) {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("batch: create output directory: %w", err)
	}

	run := &Run{
		ID:        uuid.New().String(),
		StartedAt: r.now(),
		Results:   make([]Result, len(rows)),
	}
	logger := r.logger.WithFields(logrus.Fields{
		"run_id":  run.ID,
		"rows":    len(rows),
		"workers": r.workers,
		"method":  r.engine.Method(),
	})
	logger.Info("Starting batch assessment")

	names := outputNames(rows)
	for i, row := range rows {
		if names[i] != ExportFileName(fallbackID(row, i)) {
			logger.WithFields(logrus.Fields{
				"row":        i + 1,
				"patient_id": fallbackID(row, i),
				"file":       names[i],
			}).Warn("Duplicate patient_id, writing row-suffixed export")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, row := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := r.assess(i, row, names[i])
			if res.Err != nil {
				logger.WithFields(logrus.Fields{
					"row":        res.Row,
					"patient_id": res.PatientID,
				}).WithError(res.Err).Warn("Row failed")
			}
			run.Results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}

	run.Duration = time.Since(run.StartedAt)
	logger.WithFields(logrus.Fields{
		"succeeded": len(run.Succeeded()),
		"failed":    len(run.Failed()),
		"duration":  run.Duration.String(),
	}).Info("Batch assessment finished")

	return run, nil
}

func (r *Runner) assess(i int, row Row, name string) Result {
	res := Result{Row: i + 1}

	profile, err := domain.ParsePatient(row.Record())
	if err != nil {
		res.PatientID = fallbackID(row, i)
		res.Err = err
		return res
	}
	if profile.PatientID == "" {
		profile.PatientID = fallbackID(row, i)
	}
	res.PatientID = profile.PatientID
	res.Profile = profile

	assessment, err := r.engine.Assess(profile)
	if err != nil {
		res.Err = err
		return res
	}
	res.Assessment = assessment
	res.Document = r.engine.Export(profile, assessment, r.now())

	data, err := json.MarshalIndent(res.Document, "", "  ")
	if err != nil {
		res.Err = fmt.Errorf("encode export: %w", err)
		return res
	}

	path := filepath.Join(r.outputDir, name)
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		res.Err = fmt.Errorf("write export: %w", err)
		return res
	}
	res.OutputPath = path

	return res
}

const exportSuffix = "_assessment.json"

// ExportFileName returns the <id>_assessment.json name used for a patient's
// export, with the ID sanitized for use as a file name.
func ExportFileName(patientID string) string {
	return fileName(patientID) + exportSuffix
}

// outputNames picks one export file name per row before any worker starts.
// The first row with a given patient_id keeps <id>_assessment.json; later
// rows with the same ID (or an ID that sanitizes to the same name) get the
// row number added. Names are compared case-insensitively.
func outputNames(rows []Row) []string {
	names := make([]string, len(rows))
	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		base := fileName(fallbackID(row, i))
		name := base + exportSuffix
		for n := 0; seen[strings.ToLower(name)]; n++ {
			if n == 0 {
				name = fmt.Sprintf("%s_row%d%s", base, i+1, exportSuffix)
			} else {
				name = fmt.Sprintf("%s_row%d_%d%s", base, i+1, n, exportSuffix)
			}
		}
		seen[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

func fallbackID(row Row, i int) string {
	if id := strings.TrimSpace(row[domain.FieldPatientID]); id != "" {
		return id
	}
	return fmt.Sprintf("patient_%04d", i+1)
}

// fileName keeps patient IDs from escaping the output directory.
func fileName(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, strings.ReplaceAll(id, "..", "_"))
}
