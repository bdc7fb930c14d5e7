package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/spec-kit/ticket-router/pkg/util/errorutil"
)

const defaultEvalWorkers = 4

// EvalCase is one question with the answer a reviewer expects.
type EvalCase struct {
	Question    string `json:"question"`
	GroundTruth string `json:"ground_truth"`
}

// EvalRow is an EvalCase with what the pipeline answered and the chunk texts
// it answered from. A failed run leaves Answer and Contexts empty.
type EvalRow struct {
	Question    string   `json:"question"`
	GroundTruth string   `json:"ground_truth"`
	Answer      string   `json:"answer"`
	Contexts    []string `json:"contexts"`
	ErrorCode   string   `json:"error_code,omitempty"`
}

// EvalReport summarizes an evaluation dataset run.
type EvalReport struct {
	Total    int `json:"total"`
	Answered int `json:"answered"`
	Failed   int `json:"failed"`
}

// EvalService builds evaluation datasets by running questions through the pipeline.
type EvalService struct {
	pipeline Analyzer
	workers  int
	logger   *zap.Logger
}

// EvalDependencies bundles collaborators for the evaluation service.
type EvalDependencies struct {
	Pipeline Analyzer
	Workers  int
	Logger   *zap.Logger
}

func NewEvalService(deps EvalDependencies) *EvalService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := deps.Workers
	if workers <= 0 {
		workers = defaultEvalWorkers
	}
	return &EvalService{pipeline: deps.Pipeline, workers: workers, logger: logger.Named("eval_service")}
}

// BuildEvalSet runs every case and returns one row per case, in input order.
func (e *EvalService) BuildEvalSet(ctx context.Context, cases []EvalCase) ([]EvalRow, EvalReport) {
	rows := make([]EvalRow, len(cases))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, c := range cases {
		i, c := i, c
		g.Go(func() error {
			rows[i] = e.evaluate(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	report := EvalReport{Total: len(cases)}
	for _, row := range rows {
		if row.ErrorCode != "" {
			report.Failed++
		} else {
			report.Answered++
		}
	}
	e.logger.Info("evaluation set built",
		zap.Int("total", report.Total),
		zap.Int("answered", report.Answered),
		zap.Int("failed", report.Failed),
	)
	return rows, report
}

func (e *EvalService) evaluate(ctx context.Context, c EvalCase) EvalRow {
	row := EvalRow{Question: c.Question, GroundTruth: c.GroundTruth, Contexts: []string{}}
	result := e.pipeline.Run(ctx, c.Question)
	if result.Failed() {
		e.logger.Warn("evaluation question failed", zap.String("code", result.Code), zap.String("error", result.Error))
		row.ErrorCode = result.Code
		return row
	}
	if result.State.Answer != nil {
		row.Answer = result.State.Answer.Text
	}
	for _, chunk := range result.State.Context {
		row.Contexts = append(row.Contexts, chunk.Text)
	}
	return row
}

// EvalFile reads cases from inPath and writes rows to outPath. Files ending in
// .csv use CSV (question, ground_truth columns, header optional on input);
// anything else is a JSON array.
func (e *EvalService) EvalFile(ctx context.Context, inPath, outPath string) (EvalReport, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return EvalReport{}, fmt.Errorf("open evaluation cases: %w", err)
	}
	defer in.Close()

	var cases []EvalCase
	if isCSV(inPath) {
		cases, err = readEvalCSV(in)
	} else {
		err = json.NewDecoder(in).Decode(&cases)
	}
	if err != nil {
		return EvalReport{}, apperrors.NewValidationError("evaluation cases must be {question, ground_truth} rows", map[string]any{"path": inPath, "error": err.Error()})
	}

	rows, report := e.BuildEvalSet(ctx, cases)

	out, err := os.Create(outPath)
	if err != nil {
		return report, fmt.Errorf("create evaluation output: %w", err)
	}
	if isCSV(outPath) {
		err = writeEvalCSV(out, rows)
	} else {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(rows)
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return report, fmt.Errorf("write evaluation output: %w", err)
	}
	return report, nil
}

func isCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}

func readEvalCSV(r io.Reader) ([]EvalCase, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	cases := make([]EvalCase, 0, len(records))
	for i, record := range records {
		if i == 0 && len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "question") {
			continue
		}
		if len(record) == 0 {
			continue
		}
		c := EvalCase{Question: record[0]}
		if len(record) > 1 {
			c.GroundTruth = record[1]
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// writeEvalCSV writes contexts as a JSON array in a single column.
func writeEvalCSV(w io.Writer, rows []EvalRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"question", "ground_truth", "answer", "contexts"}); err != nil {
		return err
	}
	for _, row := range rows {
		contexts, err := json.Marshal(row.Contexts)
		if err != nil {
			return err
		}
		if err := writer.Write([]string{row.Question, row.GroundTruth, row.Answer, string(contexts)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
