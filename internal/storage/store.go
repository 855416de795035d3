package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/daesim/internal/dae"
)

// Store persists solver runs under a base directory, one subdirectory
// per run holding metadata.json and states.csv.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID           string    `json:"id"`
	Problem      string    `json:"problem"`
	Timestamp    time.Time `json:"timestamp"`
	RTol         float64   `json:"rtol"`
	ATol         float64   `json:"atol"`
	LinearSolver string    `json:"linear_solver"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	EventIndex   int       `json:"event_index"`
	EventTime    float64   `json:"event_time,omitempty"`
	Steps        int       `json:"steps"`
	ResEvals     int       `json:"res_evals"`
	JacEvals     int       `json:"jac_evals"`
	LinSolves    int       `json:"lin_solves"`
	ErrTestFails int       `json:"err_test_fails"`
	ConvFails    int       `json:"conv_fails"`
	FinalTime    float64   `json:"final_time"`
	FinalOrder   int       `json:"final_order"`
}

// Save writes a completed run to disk and returns its run ID.
func (s *Store) Save(problem string, rtol, atol float64, linSolver string, sol *dae.Solution) (string, error) {
	runID := fmt.Sprintf("%s_%d", problem, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	reason := ""
	if sol.Termination.Reason != nil {
		reason = sol.Termination.Reason.Error()
	}
	meta := RunMetadata{
		ID:           runID,
		Problem:      problem,
		Timestamp:    time.Now(),
		RTol:         rtol,
		ATol:         atol,
		LinearSolver: linSolver,
		Status:       sol.Termination.Status.String(),
		Reason:       reason,
		EventIndex:   sol.Termination.EventIndex,
		EventTime:    sol.Termination.EventTime,
		Steps:        sol.Stats.Steps,
		ResEvals:     sol.Stats.ResEvals,
		JacEvals:     sol.Stats.JacEvals,
		LinSolves:    sol.Stats.LinSolves,
		ErrTestFails: sol.Stats.ErrTestFails,
		ConvFails:    sol.Stats.ConvFails,
		FinalTime:    sol.Stats.CurrentTime,
		FinalOrder:   sol.Stats.LastOrder,
	}

	metaPath := filepath.Join(runDir, "metadata.json")
	metaFile, err := os.Create(metaPath)
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvPath := filepath.Join(runDir, "states.csv")
	csvFile, err := os.Create(csvPath)
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	if sol.Len() == 0 {
		return runID, nil
	}

	n := len(sol.Y[0])
	numSens := len(sol.YS)

	header := []string{"time"}
	for i := 0; i < n; i++ {
		header = append(header, fmt.Sprintf("y%d", i))
	}
	for j := 0; j < numSens; j++ {
		for i := 0; i < n; i++ {
			header = append(header, fmt.Sprintf("s%d_y%d", j, i))
		}
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for i := range sol.Y {
		row := []string{strconv.FormatFloat(sol.T[i], 'g', 12, 64)}
		for _, val := range sol.Y[i] {
			row = append(row, strconv.FormatFloat(val, 'g', 12, 64))
		}
		for j := 0; j < numSens; j++ {
			for _, val := range sol.YS[j][i] {
				row = append(row, strconv.FormatFloat(val, 'g', 12, 64))
			}
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	return runID, nil
}

// List returns the metadata of every stored run.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		metaPath := filepath.Join(s.baseDir, entry.Name(), "metadata.json")
		data, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}

		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}

		runs = append(runs, meta)
	}

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	metaPath := filepath.Join(s.baseDir, runID, "metadata.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadStates reads back the state trajectory of a stored run. Sensitivity
// columns, if present, are returned as part of each row after the state
// components.
func (s *Store) LoadStates(runID string) ([][]float64, []float64, error) {
	csvPath := filepath.Join(s.baseDir, runID, "states.csv")
	file, err := os.Open(csvPath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}

	if len(records) < 2 {
		return [][]float64{}, []float64{}, nil
	}

	times := make([]float64, 0, len(records)-1)
	states := make([][]float64, 0, len(records)-1)

	for i := 1; i < len(records); i++ {
		record := records[i]
		if len(record) == 0 {
			continue
		}

		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		times = append(times, t)

		state := make([]float64, 0, len(record)-1)
		for j := 1; j < len(record); j++ {
			val, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				continue
			}
			state = append(state, val)
		}
		states = append(states, state)
	}

	return states, times, nil
}
