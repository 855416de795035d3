package storage

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/daesim/internal/dae"
)

func sampleSolution() *dae.Solution {
	sol := dae.NewSolution(3, 1)
	sol.Append(0, dae.State{1, 2}, []dae.State{{0, 0}})
	sol.Append(0.5, dae.State{0.6, 1.2}, []dae.State{{-0.3, 0}})
	sol.Append(1.0, dae.State{0.36, 0.72}, []dae.State{{-0.37, 0}})
	sol.Termination = dae.Termination{Status: dae.Completed}
	sol.Stats = dae.Stats{Steps: 42, ResEvals: 100, LastOrder: 3, LastStep: 0.1, CurrentTime: 1.0}
	return sol
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}

	runID, err := st.Save("decay", 1e-6, 1e-8, "sparse", sampleSolution())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if meta.Problem != "decay" {
		t.Errorf("problem = %q, want decay", meta.Problem)
	}
	if meta.Steps != 42 {
		t.Errorf("steps = %d, want 42", meta.Steps)
	}
	if meta.RTol != 1e-6 || meta.ATol != 1e-8 {
		t.Errorf("tolerances = %v, %v", meta.RTol, meta.ATol)
	}
	if meta.Status != "completed" {
		t.Errorf("status = %q, want completed", meta.Status)
	}

	states, times, err := st.LoadStates(runID)
	if err != nil {
		t.Fatalf("LoadStates: %v", err)
	}
	if len(states) != 3 || len(times) != 3 {
		t.Fatalf("got %d states, %d times, want 3 each", len(states), len(times))
	}
	if times[1] != 0.5 {
		t.Errorf("times[1] = %v, want 0.5", times[1])
	}
	// Two state columns plus two sensitivity columns per row.
	if len(states[0]) != 4 {
		t.Fatalf("row width %d, want 4", len(states[0]))
	}
	if math.Abs(states[1][0]-0.6) > 1e-9 {
		t.Errorf("states[1][0] = %v, want 0.6", states[1][0])
	}
	if math.Abs(states[1][2]+0.3) > 1e-9 {
		t.Errorf("sensitivity column = %v, want -0.3", states[1][2])
	}
}

func TestStore_List(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected no runs, got %d", len(runs))
	}

	if _, err := st.Save("decay", 1e-6, 1e-6, "auto", sampleSolution()); err != nil {
		t.Fatal(err)
	}
	runs, err = st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
}

func TestStore_ListMissingDir(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "never-created"))
	runs, err := st.List()
	if err != nil {
		t.Fatalf("List on missing dir: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected empty list, got %d", len(runs))
	}
}

func TestStore_SaveFailedRun(t *testing.T) {
	sol := dae.NewSolution(1, 0)
	sol.Append(0, dae.State{1}, nil)
	sol.Termination = dae.Termination{Status: dae.Failed, Reason: errors.New("step budget exhausted")}

	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	runID, err := st.Save("decay", 1e-6, 1e-6, "auto", sol)
	if err != nil {
		t.Fatal(err)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Status != "failed" {
		t.Errorf("status = %q, want failed", meta.Status)
	}
	if meta.Reason == "" {
		t.Error("failure reason missing from metadata")
	}
}

func TestExportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := ExportJSON(path, "decay", "sparse", 1e-6, 1e-6, sampleSolution()); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("export wrote an empty file")
	}
}
