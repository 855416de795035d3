package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/daesim/internal/dae"
)

type ExportData struct {
	Problem       string        `json:"problem"`
	LinearSolver  string        `json:"linear_solver"`
	RTol          float64       `json:"rtol"`
	ATol          float64       `json:"atol"`
	Status        string        `json:"status"`
	Reason        string        `json:"reason,omitempty"`
	EventIndex    int           `json:"event_index"`
	EventTime     float64       `json:"event_time,omitempty"`
	Times         []float64     `json:"times"`
	States        [][]float64   `json:"states"`
	Sensitivities [][][]float64 `json:"sensitivities,omitempty"`
	Stats         dae.Stats     `json:"stats"`
}

func buildExport(problem, linSolver string, rtol, atol float64, sol *dae.Solution) ExportData {
	reason := ""
	if sol.Termination.Reason != nil {
		reason = sol.Termination.Reason.Error()
	}
	data := ExportData{
		Problem:      problem,
		LinearSolver: linSolver,
		RTol:         rtol,
		ATol:         atol,
		Status:       sol.Termination.Status.String(),
		Reason:       reason,
		EventIndex:   sol.Termination.EventIndex,
		EventTime:    sol.Termination.EventTime,
		Times:        sol.T,
		States:       make([][]float64, len(sol.Y)),
		Stats:        sol.Stats,
	}
	for i, s := range sol.Y {
		data.States[i] = s
	}
	if len(sol.YS) > 0 {
		// One trajectory per tracked parameter, parallel to Times.
		data.Sensitivities = make([][][]float64, len(sol.YS))
		for j, traj := range sol.YS {
			rows := make([][]float64, len(traj))
			for k, s := range traj {
				rows[k] = s
			}
			data.Sensitivities[j] = rows
		}
	}
	return data
}

// ExportJSON writes a run as indented JSON to the given path.
func ExportJSON(path, problem, linSolver string, rtol, atol float64, sol *dae.Solution) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return writeExport(file, problem, linSolver, rtol, atol, sol)
}

// ExportJSONStdout writes a run as indented JSON to standard output.
func ExportJSONStdout(problem, linSolver string, rtol, atol float64, sol *dae.Solution) error {
	return writeExport(os.Stdout, problem, linSolver, rtol, atol, sol)
}

func writeExport(w io.Writer, problem, linSolver string, rtol, atol float64, sol *dae.Solution) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildExport(problem, linSolver, rtol, atol, sol))
}
