// Command selfencrypt-bench compares two `selfencrypt bench -format text`
// runs with golang.org/x/perf/benchstat and flags a regression when the new
// run's ns/op for any benchmark worsens by more than -threshold against the
// baseline via -update-baseline/-threshold.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"golang.org/x/perf/benchstat"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("selfencrypt-bench", flag.ExitOnError)
	baseline := fs.String("baseline", "", "baseline benchmark output file (go test -bench format)")
	current := fs.String("current", "", "current benchmark output file to compare against baseline")
	threshold := fs.Float64("threshold", 0.10, "fractional ns/op regression that fails the comparison, e.g. 0.10 for 10%")
	updateBaseline := fs.Bool("update-baseline", false, "overwrite -baseline with -current instead of comparing")
	fs.Parse(args)

	if *current == "" {
		return fmt.Errorf("selfencrypt-bench: -current is required")
	}

	if *updateBaseline {
		if *baseline == "" {
			return fmt.Errorf("selfencrypt-bench: -baseline is required with -update-baseline")
		}
		data, err := os.ReadFile(*current)
		if err != nil {
			return fmt.Errorf("selfencrypt-bench: read -current: %w", err)
		}
		if err := os.WriteFile(*baseline, data, 0o644); err != nil {
			return fmt.Errorf("selfencrypt-bench: write -baseline: %w", err)
		}
		fmt.Printf("baseline %s updated from %s\n", *baseline, *current)
		return nil
	}

	if *baseline == "" {
		return fmt.Errorf("selfencrypt-bench: -baseline is required unless -update-baseline is set")
	}

	baselineData, err := os.ReadFile(*baseline)
	if err != nil {
		return fmt.Errorf("selfencrypt-bench: read -baseline: %w", err)
	}
	currentData, err := os.ReadFile(*current)
	if err != nil {
		return fmt.Errorf("selfencrypt-bench: read -current: %w", err)
	}

	c := &benchstat.Collection{
		Alpha:      0.05,
		AddGeomean: false,
	}
	if err := c.AddConfig("baseline", baselineData); err != nil {
		return fmt.Errorf("selfencrypt-bench: parse -baseline: %w", err)
	}
	if err := c.AddConfig("current", currentData); err != nil {
		return fmt.Errorf("selfencrypt-bench: parse -current: %w", err)
	}

	tables := c.Tables()
	var buf bytes.Buffer
	benchstat.FormatText(&buf, tables)
	fmt.Print(buf.String())

	regressed := regressedBenchmarks(tables, *threshold)
	if len(regressed) > 0 {
		fmt.Fprintln(os.Stderr)
		for _, name := range regressed {
			fmt.Fprintf(os.Stderr, "regression: %s exceeds %.0f%% ns/op threshold\n", name, *threshold*100)
		}
		return fmt.Errorf("selfencrypt-bench: %d benchmark(s) regressed", len(regressed))
	}
	return nil
}

// regressedBenchmarks walks benchstat's ns/op table and reports rows whose
// PctDelta between the baseline and current configuration exceeds threshold
// (a positive ns/op delta means the current run is slower).
func regressedBenchmarks(tables []*benchstat.Table, threshold float64) []string {
	var regressed []string
	for _, t := range tables {
		// benchstat labels the ns/op table "time/op" and reports PctDelta
		// in percent, while threshold is a fraction.
		if t.Metric != "time/op" {
			continue
		}
		for _, row := range t.Rows {
			if row.PctDelta > threshold*100 {
				regressed = append(regressed, row.Benchmark)
			}
		}
	}
	return regressed
}
