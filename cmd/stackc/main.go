// SPDX-License-Identifier: Apache-2.0
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"stackc/internal/compiler"
	"stackc/internal/config"
	"stackc/internal/errors"
	"stackc/internal/ir"
)

func main() {
	configPath := flag.String("config", "", "path to stackc.toml (default: searched upwards from the input)")
	printIR := flag.Bool("print-ir", false, "print the optimized IR instead of the emitted stream")
	level := flag.String("O", "", "optimization level: none, O2, O3 or Os")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: stackc <file.ir> [-config stackc.toml] [-print-ir] [-O level]")
		flag.PrintDefaults()
	}

	args := os.Args[1:]
	var path string
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		path, args = args[0], args[1:]
	}
	_ = flag.CommandLine.Parse(args)
	if path == "" && flag.NArg() > 0 {
		path = flag.Arg(0)
	}
	if path == "" {
		flag.Usage()
		os.Exit(1)
	}

	startTime := time.Now()

	cfg, err := loadConfig(*configPath, path)
	if err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
	if *level != "" {
		cfg.Optimize = *level
		if err := cfg.Validate(); err != nil {
			color.Red("%v", err)
			os.Exit(1)
		}
	}
	commonlog.Configure(cfg.Log.Verbosity, logPath(cfg))

	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read file: %v\n", err)
		os.Exit(1)
	}
	errorReporter := errors.NewReporter(path, string(source))

	ctx, sm, err := ir.ParseWithMap(filepath.Base(path), string(source))
	if err != nil {
		fail(errorReporter, err, nil, startTime)
	}

	result, err := compiler.Compile(ctx, cfg)
	if err != nil {
		fail(errorReporter, err, sm, startTime)
	}

	for _, notice := range result.Notices {
		fmt.Print(errorReporter.Format(errors.NewDiagnostic(notice, sm)))
	}

	if *printIR {
		fmt.Print(ir.Print(result.Context))
	} else {
		for _, fn := range result.Functions {
			fmt.Print(fn.String())
		}
	}
	for name, vars := range result.Spilled {
		color.Yellow("%s: spilled %v to memory", name, vars)
	}

	color.Green("Successfully compiled %s in %s", path, formatDuration(time.Since(startTime)))
}

// loadConfig reads the explicit config file, or the nearest stackc.toml
// above the input, or falls back to the defaults
func loadConfig(explicit, input string) (*config.Config, error) {
	if explicit != "" {
		return config.Load(explicit)
	}
	if found := config.FindConfigFile(input); found != "" {
		return config.Load(found)
	}
	return config.Default(), nil
}

func logPath(cfg *config.Config) *string {
	if cfg.Log.Path == "" {
		return nil
	}
	return &cfg.Log.Path
}

func fail(reporter *errors.Reporter, err error, loc errors.Locator, startTime time.Time) {
	fmt.Print(reporter.Format(errors.NewDiagnostic(err, loc)))
	color.Red("Compilation failed after %s", formatDuration(time.Since(startTime)))
	os.Exit(1)
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return fmt.Sprintf("%.2fmin", d.Minutes())
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d.Nanoseconds())/1000000.0)
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fμs", float64(d.Nanoseconds())/1000.0)
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}
