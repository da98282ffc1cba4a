package workspace

import "time"

// ProgressReporter provides callbacks for reporting workspace progress.
// Implementations can display progress bars, log messages, or remain silent.
// Callbacks may be invoked from several workers at once.
type ProgressReporter interface {
	// OnDiscoveryComplete is called once the IR dumps to analyze are known.
	OnDiscoveryComplete(units int)

	// OnUnitAnalyzed is called after each unit, successful or not.
	OnUnitAnalyzed(stats UnitStats)

	// OnMergeStart is called before the unit graphs are merged.
	OnMergeStart(units int)

	// OnComplete is called when a run completes successfully.
	OnComplete(stats *RunStats)
}

// NoOpProgressReporter is a progress reporter that does nothing.
type NoOpProgressReporter struct{}

func (NoOpProgressReporter) OnDiscoveryComplete(units int)  {}
func (NoOpProgressReporter) OnUnitAnalyzed(stats UnitStats) {}
func (NoOpProgressReporter) OnMergeStart(units int)         {}
func (NoOpProgressReporter) OnComplete(stats *RunStats)     {}

// UnitStats describes the analysis of one unit.
type UnitStats struct {
	Unit      string
	Path      string // IR dump the unit was read from
	Functions int
	Filtered  int
	Failed    int // Functions whose calls were dropped
	Nodes     int
	Edges     int
	Duration  time.Duration
	Err       error // Set when the unit produced no graph
}

// RunStats describes a full analyze-and-merge run.
type RunStats struct {
	Units       []UnitStats
	MergedNodes int
	MergedEdges int
	Duration    time.Duration
}

// Failed returns the units that produced no graph.
func (s *RunStats) Failed() []UnitStats {
	var out []UnitStats
	for _, u := range s.Units {
		if u.Err != nil {
			out = append(out, u)
		}
	}
	return out
}
