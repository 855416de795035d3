// Package report renders solve results for the terminal: a styled
// summary of the termination record and work counters, plus ASCII
// trajectory plots.
package report

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/daesim/internal/dae"
)

// Summary renders the termination record and work counters of a solve.
func Summary(sol *dae.Solution) string {
	var s strings.Builder

	var status string
	switch sol.Termination.Status {
	case dae.Completed:
		status = StatusOK.Render("completed")
	case dae.EventTriggered:
		status = StatusEvent.Render(fmt.Sprintf("event %d at t=%.6g",
			sol.Termination.EventIndex, sol.Termination.EventTime))
	default:
		status = StatusFail.Render(fmt.Sprintf("failed: %v", sol.Termination.Reason))
	}
	s.WriteString(Label.Render("status") + status + "\n")

	st := sol.Stats
	row := func(label, val string) {
		s.WriteString(Label.Render(label) + Value.Render(val) + "\n")
	}
	row("steps", fmt.Sprintf("%d", st.Steps))
	row("residual evals", fmt.Sprintf("%d", st.ResEvals))
	row("jacobian evals", fmt.Sprintf("%d", st.JacEvals))
	row("linear solves", fmt.Sprintf("%d", st.LinSolves))
	row("error failures", fmt.Sprintf("%d", st.ErrTestFails))
	row("newton failures", fmt.Sprintf("%d", st.ConvFails))
	if st.SensSolves > 0 {
		row("sens solves", fmt.Sprintf("%d", st.SensSolves))
	}
	row("final step", fmt.Sprintf("%.3g", st.LastStep))
	row("final order", fmt.Sprintf("%d", st.LastOrder))
	row("final time", fmt.Sprintf("%.6g", st.CurrentTime))

	return s.String()
}

// Plot renders one state component against the output index.
func Plot(data []float64, caption string) string {
	if len(data) < 2 {
		return Subtle.Render("(not enough points to plot)")
	}
	graph := asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(caption),
	)
	return Graph.Render(graph)
}

// PlotSolution renders the first maxPlots state components of a solve.
func PlotSolution(sol *dae.Solution, maxPlots int) string {
	if sol.Len() == 0 {
		return Subtle.Render("(no data to plot)")
	}
	n := len(sol.Y[0])
	if n > maxPlots {
		n = maxPlots
	}

	var s strings.Builder
	for i := 0; i < n; i++ {
		s.WriteString(Plot(sol.Component(i), fmt.Sprintf("y%d vs output index", i)))
		s.WriteString("\n\n")
	}
	return s.String()
}
