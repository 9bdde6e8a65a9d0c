package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"colony.ai/internal/persistence/targetdb"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "targets":
			os.Exit(targetsCmd(os.Args[2:], os.Stdout))
		case "cycles":
			os.Exit(cyclesCmd(os.Args[2:], os.Stdout))
		case "drops":
			os.Exit(dropsCmd(os.Args[2:], os.Stdout))
		case "status":
			os.Exit(statusCmd(os.Args[2:], os.Stdout))
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin targets|cycles|drops|status [flags]")
	os.Exit(2)
}

func openDB(path string) (*targetdb.Store, bool) {
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open db:", err)
		return nil, false
	}
	db, err := targetdb.Open(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open db:", err)
		return nil, false
	}
	return db, true
}

func targetsCmd(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("targets", flag.ExitOnError)
	dbPath := fs.String("db", "./data/colony.sqlite", "target db path")
	_ = fs.Parse(args)

	db, ok := openDB(*dbPath)
	if !ok {
		return 1
	}
	defer db.Close()

	run, tick, ok, err := db.Checkpoint()
	if err != nil {
		fmt.Fprintln(os.Stderr, "checkpoint:", err)
		return 1
	}
	if !ok {
		fmt.Fprintln(out, "no checkpoint")
		return 0
	}
	recs, err := db.LoadTargets()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load targets:", err)
		return 1
	}
	fmt.Fprintf(out, "checkpoint run=%s tick=%d goals=%d\n", run, tick, len(recs))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AGENT\tKIND\tTARGET")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Agent, r.Kind, r.Target)
	}
	_ = tw.Flush()
	return 0
}

func cyclesCmd(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("cycles", flag.ExitOnError)
	dbPath := fs.String("db", "./data/colony.sqlite", "target db path")
	runID := fs.String("run", "", "run id (default: the checkpointed run)")
	last := fs.Int("last", 20, "show only the last n cycles (0: all)")
	_ = fs.Parse(args)

	db, ok := openDB(*dbPath)
	if !ok {
		return 1
	}
	defer db.Close()

	run, ok := resolveRun(db, *runID)
	if !ok {
		return 1
	}
	rows, err := db.Cycles(run)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cycles:", err)
		return 1
	}
	if *last > 0 && len(rows) > *last {
		rows = rows[len(rows)-*last:]
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICK\tAGENTS\tIDLE\tASSIGNED\tDROPPED\tSPAWNED\tGOALS\tCPU_MS")
	for _, c := range rows {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%.3f\n", c.Tick, c.Agents, c.Idle, c.Assigned, c.Dropped, c.Spawned, c.Goals, c.CPUUsed)
	}
	_ = tw.Flush()
	return 0
}

func dropsCmd(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("drops", flag.ExitOnError)
	dbPath := fs.String("db", "./data/colony.sqlite", "target db path")
	runID := fs.String("run", "", "run id (default: the checkpointed run)")
	_ = fs.Parse(args)

	db, ok := openDB(*dbPath)
	if !ok {
		return 1
	}
	defer db.Close()

	run, ok := resolveRun(db, *runID)
	if !ok {
		return 1
	}
	counts, err := db.DropCounts(run)
	if err != nil {
		fmt.Fprintln(os.Stderr, "drops:", err)
		return 1
	}
	reasons := make([]string, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(out, "%s\t%d\n", r, counts[r])
	}
	return 0
}

func resolveRun(db *targetdb.Store, runID string) (string, bool) {
	if runID != "" {
		return runID, true
	}
	run, _, ok, err := db.Checkpoint()
	if err != nil {
		fmt.Fprintln(os.Stderr, "checkpoint:", err)
		return "", false
	}
	if !ok {
		fmt.Fprintln(os.Stderr, "no checkpoint; pass -run")
		return "", false
	}
	return run, true
}
