// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// crosscheck runs the full cross-implementation equivalence suite against the
// configured backend and prints a summary. Exit code 1 if any case failed.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/crosscheck/backendrun"
	"github.com/gomlx/crosscheck/harness"
	"github.com/gomlx/crosscheck/special"
	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

var (
	flagConfig = flag.String("config", "", "Path to a YAML configuration file with seed, "+
		"parallelism, skip rules and domain substitutions. Empty uses the built-in defaults.")
	flagSeed        = flag.Uint64("seed", 0, "Root seed; 0 keeps the configured one.")
	flagFailFast    = flag.Bool("fail_fast", false, "Skip remaining cases after the first failure.")
	flagParallelism = flag.Int("parallelism", 0, "Concurrent cases: 0 sequential, -1 unlimited.")
	flagFunctions   = flag.String("functions", "", "Comma-separated function names to run. Empty runs everything.")
	flagVerbose     = flag.Bool("v_failures", true, "Print a line per failed case.")
)

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	skipStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	config := harness.DefaultConfig()
	if *flagConfig != "" {
		config = must.M1(harness.LoadConfig(*flagConfig))
	}
	if *flagSeed != 0 {
		config.Seed = *flagSeed
	}
	if *flagFailFast {
		config.FailFast = true
	}
	if *flagParallelism != 0 {
		config.Parallelism = *flagParallelism
	}

	specs := selectSpecs(special.Specs(), *flagFunctions)
	if len(specs) == 0 {
		klog.Errorf("No functions selected by -functions=%q.", *flagFunctions)
		os.Exit(1)
	}

	backend := backendrun.MustBackend()
	fmt.Printf("backend=%s seed=%d functions=%d\n", backend.Name(), config.Seed, len(specs))

	total := 0
	for _, spec := range specs {
		cases := must.M1(harness.Generate(spec))
		total += len(cases)
	}
	bar := progressbar.Default(int64(total), "cases")

	runner := harness.NewRunner(backend, config)
	runner.OnResult = func(harness.CaseResult) {
		_ = bar.Add(1)
	}
	report := must.M1(runner.Run(specs))
	_ = bar.Finish()
	fmt.Println()

	if *flagVerbose {
		for _, failure := range report.Failures() {
			fmt.Printf("%s %s: %v\n", failStyle.Render("FAIL"), failure.Case.ID, failure.Err)
		}
		for _, result := range report.Results {
			if result.Status == harness.Skipped && result.Reason != "" {
				klog.V(1).Infof("SKIP %s: %s", result.Case.ID, result.Reason)
			}
		}
	}

	fmt.Printf("run %s on %q in %s: %s / %s / %s of %s cases\n",
		dimStyle.Render(report.RunID.String()), report.Backend, report.Elapsed.Round(time.Millisecond),
		passStyle.Render(fmt.Sprintf("%s passed", humanize.Comma(int64(report.NumPassed)))),
		failStyle.Render(fmt.Sprintf("%s failed", humanize.Comma(int64(report.NumFailed)))),
		skipStyle.Render(fmt.Sprintf("%s skipped", humanize.Comma(int64(report.NumSkipped)))),
		humanize.Comma(int64(len(report.Results))))
	if !report.OK() {
		os.Exit(1)
	}
}

// selectSpecs filters the table by the -functions flag.
func selectSpecs(specs []*harness.FunctionSpec, names string) []*harness.FunctionSpec {
	if names == "" {
		return specs
	}
	wanted := make(map[string]bool)
	for _, name := range strings.Split(names, ",") {
		if name = strings.TrimSpace(name); name != "" {
			wanted[name] = true
		}
	}
	var out []*harness.FunctionSpec
	for _, spec := range specs {
		if wanted[spec.Name] {
			out = append(out, spec)
		}
	}
	return out
}
