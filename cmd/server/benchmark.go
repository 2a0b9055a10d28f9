package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/anclora/orchestrator/internal/benchmark"
)

// BenchmarkCommand represents the available benchmark subcommands.
type BenchmarkCommand string

const (
	BenchmarkList    BenchmarkCommand = "list"
	BenchmarkRun     BenchmarkCommand = "run"
	BenchmarkRefresh BenchmarkCommand = "refresh"
)

// BenchmarkOptions holds the command-line options for benchmark commands.
type BenchmarkOptions struct {
	Command    BenchmarkCommand
	ConfigPath string
	Models     []string
}

// ParseBenchmarkCommand parses benchmark arguments.
func ParseBenchmarkCommand(args []string) (*BenchmarkOptions, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("missing subcommand")
	}

	opts := &BenchmarkOptions{Command: BenchmarkCommand(args[0])}
	fs := flag.NewFlagSet("benchmark", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.ConfigPath, "config", DefaultConfigPath, "Configure File Path")
	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}
	opts.Models = fs.Args()

	switch opts.Command {
	case BenchmarkList, BenchmarkRefresh:
	case BenchmarkRun:
		if len(opts.Models) == 0 {
			return nil, fmt.Errorf("run command requires at least one model")
		}
	default:
		return nil, fmt.Errorf("unknown command: %s", opts.Command)
	}
	return opts, nil
}

func printBenchmarkUsage() {
	fmt.Println("Usage: orchestrator benchmark <command> [options] [model...]")
	fmt.Println("\nCommands:")
	fmt.Println("  list               Show stored benchmarks and their freshness")
	fmt.Println("  run <model...>     Benchmark models now")
	fmt.Println("  refresh [model...] Benchmark models without a fresh result")
	fmt.Println("                     (installed models when none are given)")
	fmt.Println("\nOptions:")
	fmt.Println("  -config <path>     Config file (default config.yaml)")
}

func handleBenchmarkCommand(args []string) {
	opts, err := ParseBenchmarkCommand(args)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		printBenchmarkUsage()
		os.Exit(1)
	}

	loadDotEnv()
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		fmt.Printf("Error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer a.close()

	switch opts.Command {
	case BenchmarkList:
		all, errAll := a.benchmarks.All(ctx)
		if errAll != nil {
			fmt.Printf("Error: %v\n", errAll)
			os.Exit(1)
		}
		results := make([]benchmark.Result, 0, len(all))
		for _, r := range all {
			results = append(results, r)
		}
		printBenchmarks(os.Stdout, results, a.benchmarks.TTL(), time.Now())

	case BenchmarkRun:
		var results []benchmark.Result
		for _, model := range opts.Models {
			res, errRun := a.runner.Run(ctx, model)
			if errRun != nil {
				fmt.Printf("Error: %v\n", errRun)
				os.Exit(1)
			}
			results = append(results, res)
		}
		printBenchmarks(os.Stdout, results, a.benchmarks.TTL(), time.Now())

	case BenchmarkRefresh:
		models := opts.Models
		if len(models) == 0 {
			if models, err = a.ollama.ListModels(ctx); err != nil {
				fmt.Printf("Error: listing installed models: %v\n", err)
				os.Exit(1)
			}
		}
		results, errRefresh := a.runner.RefreshStale(ctx, models)
		if errRefresh != nil {
			fmt.Printf("Error: %v\n", errRefresh)
			os.Exit(1)
		}
		if len(results) == 0 {
			fmt.Println("All benchmarks are fresh.")
			return
		}
		printBenchmarks(os.Stdout, results, a.benchmarks.TTL(), time.Now())
	}
}

func printBenchmarks(out io.Writer, results []benchmark.Result, ttl time.Duration, now time.Time) {
	if len(results) == 0 {
		fmt.Fprintln(out, "No benchmarks stored.")
		return
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ModelID < results[j].ModelID })

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tSTATUS\tLATENCY\tTOKENS/S\tTAKEN\tFRESH")
	fmt.Fprintln(w, "-----\t------\t-------\t--------\t-----\t-----")
	for _, r := range results {
		status := "ok"
		if !r.Success {
			status = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%s\t%t\n",
			r.ModelID, status, r.Latency.Round(time.Millisecond), r.TokensPerSecond,
			r.Timestamp.Format(time.RFC3339), benchmark.IsFresh(r, ttl, now))
	}
	w.Flush()

	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(out, "error: %s: %s\n", r.ModelID, r.Error)
		}
	}
}
