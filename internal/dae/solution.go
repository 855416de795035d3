package dae

import "fmt"

// Status classifies how a solve terminated.
type Status int

const (
	Completed Status = iota
	EventTriggered
	Failed
)

func (s Status) String() string {
	switch s {
	case Completed:
		return "completed"
	case EventTriggered:
		return "event"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Termination is the final classification of a solve. EventIndex and
// EventTime are meaningful only when Status is EventTriggered; Reason only
// when Status is Failed.
type Termination struct {
	Status     Status
	EventIndex int
	EventTime  float64
	Reason     error
}

func (t Termination) String() string {
	switch t.Status {
	case EventTriggered:
		return fmt.Sprintf("event %d at t=%.6g", t.EventIndex, t.EventTime)
	case Failed:
		return fmt.Sprintf("failed: %v", t.Reason)
	default:
		return t.Status.String()
	}
}

// Stats is the per-solve work counter record.
type Stats struct {
	Steps        int
	ResEvals     int
	JacEvals     int
	LinSolves    int
	ErrTestFails int
	ConvFails    int
	SensSolves   int
	LastStep     float64
	LastOrder    int
	CurrentTime  float64
}

// Solution is the accumulated output of one solve. Y holds one state per
// entry of T; YS, when sensitivities were requested, holds one trajectory
// per tracked parameter, each parallel to T.
type Solution struct {
	T           []float64
	Y           []State
	YS          [][]State
	Termination Termination
	Stats       Stats
}

// NewSolution preallocates an output record for up to cap output times.
func NewSolution(capTimes, numSens int) *Solution {
	sol := &Solution{
		T: make([]float64, 0, capTimes),
		Y: make([]State, 0, capTimes),
	}
	if numSens > 0 {
		sol.YS = make([][]State, numSens)
		for j := range sol.YS {
			sol.YS[j] = make([]State, 0, capTimes)
		}
	}
	return sol
}

// Append records one output point. Vectors are cloned so solver-internal
// buffers are never aliased into the record handed to the caller.
func (sol *Solution) Append(t float64, y State, ys []State) {
	sol.T = append(sol.T, t)
	sol.Y = append(sol.Y, y.Clone())
	for j := range sol.YS {
		sol.YS[j] = append(sol.YS[j], ys[j].Clone())
	}
}

// Len returns the number of recorded output points.
func (sol *Solution) Len() int { return len(sol.T) }

// Final returns the last recorded time and state, or (0, nil) when empty.
func (sol *Solution) Final() (float64, State) {
	if len(sol.T) == 0 {
		return 0, nil
	}
	return sol.T[len(sol.T)-1], sol.Y[len(sol.Y)-1]
}

// Component extracts the trajectory of one state component across all
// recorded times.
func (sol *Solution) Component(i int) []float64 {
	out := make([]float64, len(sol.Y))
	for k, y := range sol.Y {
		out[k] = y[i]
	}
	return out
}
