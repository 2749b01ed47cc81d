package syncer

import "time"

// State is the lifecycle position of one region within a run.
type State string

const (
	StatePending     State = "pending"
	StateFetching    State = "fetching"
	StateReconciling State = "reconciling"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// RegionResult is the outcome of one region within a run.
type RegionResult struct {
	Region   string        `json:"wilaya" yaml:"wilaya"`
	State    State         `json:"state" yaml:"state"`
	Fetched  int           `json:"fetched" yaml:"fetched"`
	Inserted int           `json:"inserted" yaml:"inserted"`
	Updated  int           `json:"updated" yaml:"updated"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration `json:"duration_ns" yaml:"duration"`
}

// Report summarizes a completed run.
type Report struct {
	ID         string         `json:"id" yaml:"id"`
	StartedAt  time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time      `json:"finished_at" yaml:"finished_at"`
	Regions    []RegionResult `json:"regions" yaml:"regions"`
}

// Succeeded counts regions that reached StateDone.
func (r *Report) Succeeded() int {
	return r.count(func(rr RegionResult) int {
		if rr.State == StateDone {
			return 1
		}
		return 0
	})
}

// Failed counts regions that ended in StateFailed.
func (r *Report) Failed() int {
	return r.count(func(rr RegionResult) int {
		if rr.State == StateFailed {
			return 1
		}
		return 0
	})
}

func (r *Report) Fetched() int {
	return r.count(func(rr RegionResult) int { return rr.Fetched })
}

func (r *Report) Inserted() int {
	return r.count(func(rr RegionResult) int { return rr.Inserted })
}

func (r *Report) Updated() int {
	return r.count(func(rr RegionResult) int { return rr.Updated })
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailedRegions lists the names of regions that failed, in run order.
func (r *Report) FailedRegions() []string {
	var out []string
	for _, rr := range r.Regions {
		if rr.State == StateFailed {
			out = append(out, rr.Region)
		}
	}
	return out
}

func (r *Report) count(f func(RegionResult) int) int {
	n := 0
	for _, rr := range r.Regions {
		n += f(rr)
	}
	return n
}
