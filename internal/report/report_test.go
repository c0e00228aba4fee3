package report_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/signalnine/clawsweep/internal/amrlog"
	"github.com/signalnine/clawsweep/internal/params"
	"github.com/signalnine/clawsweep/internal/report"
	"github.com/signalnine/clawsweep/internal/result"
	"github.com/signalnine/clawsweep/internal/sweep"
)

func outcome() *sweep.Outcome {
	rec := func(total float64, cells map[int][]int) *result.RunRecord {
		return &result.RunRecord{LogRecord: amrlog.LogRecord{
			TotalTime: total, LevelsTime: map[int]float64{}, LevelsCells: cells,
		}}
	}
	s := result.Pivot(map[result.RunID]*result.RunRecord{
		12: rec(12.5, map[int][]int{2: {400, 250}}),
		7:  rec(7.25, nil),
	})
	s.RelErr = map[result.RunID]float64{7: 0.5, 12: 0.125}
	return &sweep.Outcome{
		Root:    "/sweeps/wave",
		Results: s,
		Dirs: map[result.RunID]string{
			7:  "/sweeps/wave/run_7_wave_1.0",
			12: "/sweeps/wave/run_12_wave_0.5",
		},
		Failures: []sweep.Failure{{Dir: "/sweeps/wave/baseline", Err: errors.New(`run directory "baseline": name contains no digits`)}},
	}
}

func TestSummarizeSortsRuns(t *testing.T) {
	out := outcome()
	sum := report.Summarize("wave", out, params.FromRunNames(out.Dirs))
	if len(sum.Runs) != 2 || sum.Runs[0].ID != 7 || sum.Runs[1].ID != 12 {
		t.Fatalf("unexpected runs %+v", sum.Runs)
	}
	if sum.Runs[1].MeanCells[2] != 325 {
		t.Errorf("mean cells: got %v, want 325", sum.Runs[1].MeanCells[2])
	}
	if sum.Runs[0].RelErr == nil || *sum.Runs[0].RelErr != 0.5 {
		t.Errorf("rel_err: got %v", sum.Runs[0].RelErr)
	}
	if len(sum.ParamNames) != 2 || sum.ParamNames[0] != "run" || sum.ParamNames[1] != "wave" {
		t.Errorf("param names: got %v", sum.ParamNames)
	}
	if len(sum.Failures) != 1 {
		t.Errorf("expected 1 failure, got %d", len(sum.Failures))
	}
}

func TestGenerateTable(t *testing.T) {
	out := outcome()
	sum := report.Summarize("wave", out, nil)
	var buf bytes.Buffer
	if err := report.Generate(sum, "table", &buf); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	output := buf.String()
	i7 := strings.Index(output, "\n7 ")
	i12 := strings.Index(output, "\n12 ")
	if i7 < 0 || i12 < 0 || i7 > i12 {
		t.Errorf("expected run 7 before run 12 in:\n%s", output)
	}
	if !strings.Contains(output, "baseline") {
		t.Error("expected failed run in output")
	}
	if !strings.Contains(output, "L2:325") {
		t.Error("expected mean cells in output")
	}
}

func TestGenerateMarkdownAndCSV(t *testing.T) {
	sum := report.Summarize("wave", outcome(), nil)

	var md bytes.Buffer
	if err := report.Generate(sum, "markdown", &md); err != nil {
		t.Fatalf("markdown: %v", err)
	}
	if !strings.Contains(md.String(), "| 12 | 12.500 |") {
		t.Errorf("unexpected markdown:\n%s", md.String())
	}

	var csvBuf bytes.Buffer
	if err := report.Generate(sum, "csv", &csvBuf); err != nil {
		t.Fatalf("csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(csvBuf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[1], "7,7.250,") {
		t.Errorf("unexpected first row %q", lines[1])
	}
}

func TestGenerateJSON(t *testing.T) {
	sum := report.Summarize("wave", outcome(), nil)
	var buf bytes.Buffer
	if err := report.Generate(sum, "json", &buf); err != nil {
		t.Fatalf("json: %v", err)
	}
	var got report.Summary
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if got.Sweep != "wave" || len(got.Runs) != 2 || *got.Runs[1].RelErr != 0.125 {
		t.Errorf("unexpected summary %+v", got)
	}
}

func TestGenerateUnknownFormat(t *testing.T) {
	if err := report.Generate(&report.Summary{}, "xml", &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown format")
	}
}
