// Package tui provides a bubbletea frontend that watches a solve as it
// runs: accepted steps stream from the integrator's observer hook into
// the UI, which shows progress toward the horizon, the step-size
// history, and the running work counters.
package tui

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/daesim/internal/bdf"
	"github.com/san-kum/daesim/internal/dae"
	"github.com/san-kum/daesim/internal/report"
)

const historyCapacity = 600

type stepMsg bdf.StepInfo

type doneMsg struct {
	sol *dae.Solution
	err error
}

// SolveFunc runs the solve under observation and returns its result.
type SolveFunc func(obs bdf.Observer) (*dae.Solution, error)

// Model is the bubbletea state for a live solve.
type Model struct {
	problem string
	tEnd    float64
	solve   SolveFunc

	ch    chan tea.Msg
	last  bdf.StepInfo
	hHist []float64

	done bool
	sol  *dae.Solution
	err  error
}

// NewModel prepares a live view for one solve. The solve starts when the
// program does.
func NewModel(problem string, tEnd float64, solve SolveFunc) Model {
	return Model{
		problem: problem,
		tEnd:    tEnd,
		solve:   solve,
		ch:      make(chan tea.Msg, 64),
		hHist:   make([]float64, 0, historyCapacity),
	}
}

type chanObserver struct{ ch chan tea.Msg }

func (o chanObserver) OnStep(info bdf.StepInfo) { o.ch <- stepMsg(info) }

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.startSolve(), m.waitForMsg())
}

func (m Model) startSolve() tea.Cmd {
	return func() tea.Msg {
		go func() {
			sol, err := m.solve(chanObserver{m.ch})
			m.ch <- doneMsg{sol: sol, err: err}
		}()
		return nil
	}
}

func (m Model) waitForMsg() tea.Cmd {
	return func() tea.Msg { return <-m.ch }
}

// Update consumes step and completion messages and handles quit keys.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case stepMsg:
		m.last = bdf.StepInfo(msg)
		if len(m.hHist) == historyCapacity {
			copy(m.hHist, m.hHist[1:])
			m.hHist = m.hHist[:historyCapacity-1]
		}
		m.hHist = append(m.hHist, math.Log10(m.last.H))
		return m, m.waitForMsg()
	case doneMsg:
		m.done = true
		m.sol = msg.sol
		m.err = msg.err
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder
	s.WriteString(report.Header.Render(strings.ToUpper(m.problem)) + "\n")

	if m.done {
		if m.err != nil {
			s.WriteString(report.StatusFail.Render(fmt.Sprintf("solve failed: %v", m.err)) + "\n\n")
		}
		if m.sol != nil {
			s.WriteString(report.Summary(m.sol))
		}
		s.WriteString(report.Subtle.Render("\npress q to exit"))
		return s.String()
	}

	s.WriteString(progressBar(m.last.Time, m.tEnd, 50) + "\n\n")

	row := func(label, val string) {
		s.WriteString(report.Label.Render(label) + report.Value.Render(val) + "\n")
	}
	row("time", fmt.Sprintf("%.6g / %.6g", m.last.Time, m.tEnd))
	row("step", fmt.Sprintf("%d", m.last.Step))
	row("step size", fmt.Sprintf("%.3g", m.last.H))
	row("order", fmt.Sprintf("%d", m.last.Order))
	row("newton iters", fmt.Sprintf("%d", m.last.NewtonIters))

	if len(m.hHist) > 1 {
		chart := asciigraph.Plot(m.hHist,
			asciigraph.Height(6),
			asciigraph.Width(60),
			asciigraph.Caption("log10 step size"),
		)
		s.WriteString(report.Graph.Render(chart) + "\n")
	}

	s.WriteString(report.Subtle.Render("\nq: quit"))
	return s.String()
}

func progressBar(t, tEnd float64, width int) string {
	frac := 0.0
	if tEnd > 0 {
		frac = t / tEnd
	}
	if frac > 1 {
		frac = 1
	}
	if frac < 0 {
		frac = 0
	}
	filled := int(frac * float64(width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return report.StatusOK.Render(bar) + fmt.Sprintf(" %3.0f%%", frac*100)
}
