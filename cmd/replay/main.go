package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"colony.ai/internal/colony"
	"colony.ai/internal/persistence/journal"
)

func main() {
	var (
		dir      = flag.String("journal", "./data/journal", "journal dir containing cycles-*.jsonl.zst")
		runID    = flag.String("run", "", "only summarize this run id (optional)")
		fromTick = flag.Uint64("from_tick", 0, "first tick to include (inclusive, optional)")
		toTick   = flag.Uint64("to_tick", 0, "last tick to include (inclusive, optional)")
		asJSON   = flag.Bool("json", false, "print the summary as json")
	)
	flag.Parse()

	files, err := journal.ListFiles(*dir, journal.CyclePrefix)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list journal:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no cycle journal found in", *dir)
		os.Exit(1)
	}

	f := filter{runID: *runID, from: *fromTick, to: *toTick}
	sums, err := summarize(*dir, f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(sums)
		return
	}
	for _, s := range sums {
		printSummary(os.Stdout, s)
	}
}

type filter struct {
	runID    string
	from, to uint64
}

func (f filter) keep(r *colony.Report) bool {
	if f.runID != "" && r.RunID != f.runID {
		return false
	}
	if f.from != 0 && r.Tick < f.from {
		return false
	}
	if f.to != 0 && r.Tick > f.to {
		return false
	}
	return true
}

// Summary aggregates the cycles of one run.
type Summary struct {
	RunID     string         `json:"run_id"`
	Cycles    int            `json:"cycles"`
	FirstTick uint64         `json:"first_tick"`
	LastTick  uint64         `json:"last_tick"`
	Spawned   int            `json:"spawned"`
	SpawnFail map[string]int `json:"spawn_failures,omitempty"`
	Assigned  map[string]int `json:"assigned"`
	Dropped   map[string]int `json:"dropped"`
	Commands  map[string]int `json:"commands"`
	Cleanups  int            `json:"cleanups"`
	Pruned    int            `json:"goals_pruned"`
	Removed   int            `json:"memory_removed"`
	PeakGoals int            `json:"peak_goals"`
	CPU       CPUStats       `json:"cpu_ms"`

	cpu []float64
}

type CPUStats struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	Max float64 `json:"max"`
}

func summarize(dir string, f filter) ([]*Summary, error) {
	byRun := map[string]*Summary{}
	var order []string
	err := journal.ReadCycles(dir, func(r *colony.Report) error {
		if !f.keep(r) {
			return nil
		}
		s, ok := byRun[r.RunID]
		if !ok {
			s = &Summary{
				RunID:     r.RunID,
				FirstTick: r.Tick,
				SpawnFail: map[string]int{},
				Assigned:  map[string]int{},
				Dropped:   map[string]int{},
				Commands:  map[string]int{},
			}
			byRun[r.RunID] = s
			order = append(order, r.RunID)
		}
		s.add(r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]*Summary, 0, len(order))
	for _, id := range order {
		s := byRun[id]
		s.CPU = cpuStats(s.cpu)
		out = append(out, s)
	}
	return out, nil
}

func (s *Summary) add(r *colony.Report) {
	s.Cycles++
	if r.Tick < s.FirstTick {
		s.FirstTick = r.Tick
	}
	if r.Tick > s.LastTick {
		s.LastTick = r.Tick
	}
	for _, sp := range r.Spawns {
		if sp.Name != "" {
			s.Spawned++
		} else if sp.Code != "" {
			s.SpawnFail[sp.Code]++
		}
	}
	for _, a := range r.Assigned {
		s.Assigned[string(a.Kind)]++
	}
	for _, d := range r.Dropped {
		key := d.Reason
		if d.Code != "" {
			key += ":" + d.Code
		}
		s.Dropped[key]++
	}
	for c, n := range r.Commands {
		s.Commands[string(c)] += n
	}
	if r.Cleanup != nil {
		s.Cleanups++
		s.Pruned += len(r.Cleanup.Targets)
		s.Removed += len(r.Cleanup.Memory)
	}
	if r.Goals > s.PeakGoals {
		s.PeakGoals = r.Goals
	}
	s.cpu = append(s.cpu, r.CPUUsed)
}

func cpuStats(v []float64) CPUStats {
	if len(v) == 0 {
		return CPUStats{}
	}
	sorted := append([]float64(nil), v...)
	sort.Float64s(sorted)
	at := func(p float64) float64 {
		i := int(p * float64(len(sorted)-1))
		return sorted[i]
	}
	return CPUStats{P50: at(0.50), P95: at(0.95), Max: sorted[len(sorted)-1]}
}

func printSummary(w io.Writer, s *Summary) {
	fmt.Fprintf(w, "run=%s cycles=%d ticks=%d..%d spawned=%d peak_goals=%d\n",
		s.RunID, s.Cycles, s.FirstTick, s.LastTick, s.Spawned, s.PeakGoals)
	fmt.Fprintf(w, "  cleanups=%d goals_pruned=%d memory_removed=%d\n", s.Cleanups, s.Pruned, s.Removed)
	fmt.Fprintf(w, "  cpu_ms p50=%.3f p95=%.3f max=%.3f\n", s.CPU.P50, s.CPU.P95, s.CPU.Max)
	printCounts(w, "assigned", s.Assigned)
	printCounts(w, "dropped", s.Dropped)
	printCounts(w, "commands", s.Commands)
	printCounts(w, "spawn_failures", s.SpawnFail)
}

func printCounts(w io.Writer, label string, m map[string]int) {
	if len(m) == 0 {
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "  %s:", label)
	for _, k := range keys {
		fmt.Fprintf(w, " %s=%d", k, m[k])
	}
	fmt.Fprintln(w)
}
