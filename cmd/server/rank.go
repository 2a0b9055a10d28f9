package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/anclora/orchestrator/internal/hardware"
	"github.com/anclora/orchestrator/internal/scoring"
)

// RankOptions holds the command-line options for the rank command.
type RankOptions struct {
	ConfigPath    string
	Context       scoring.RequestContext
	Candidates    []string
	Remember      bool
	SkipDetection bool
}

// ParseRankCommand parses rank arguments. Positional arguments are the
// candidate models; without them the installed Ollama models are ranked.
func ParseRankCommand(args []string) (*RankOptions, error) {
	opts := &RankOptions{}
	fs := flag.NewFlagSet("rank", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var mode, platforms string
	fs.StringVar(&opts.ConfigPath, "config", DefaultConfigPath, "Configure File Path")
	fs.StringVar(&mode, "mode", string(scoring.ModeBasic), "Request mode: basic, intelligent or vision")
	fs.StringVar(&opts.Context.Language, "language", "es", "Output language")
	fs.StringVar(&opts.Context.Tone, "tone", "", "Requested tone")
	fs.StringVar(&platforms, "platforms", "", "Comma-separated target platforms")
	fs.IntVar(&opts.Context.MinChars, "min-chars", 0, "Minimum output characters")
	fs.IntVar(&opts.Context.MaxChars, "max-chars", 0, "Maximum output characters")
	fs.BoolVar(&opts.Context.DeepThinking, "deep", false, "Request deep thinking")
	fs.BoolVar(&opts.Context.ImprovePrompt, "improve-prompt", false, "Request prompt improvement")
	fs.BoolVar(&opts.Context.IncludeImage, "image", false, "Request includes an image")
	fs.BoolVar(&opts.Context.PreferSpeed, "speed", false, "Prefer fast models")
	fs.BoolVar(&opts.Context.PreferQuality, "quality", false, "Prefer high quality models")
	fs.BoolVar(&opts.Remember, "remember", false, "Store the primary model as the decision for the mode")
	fs.BoolVar(&opts.SkipDetection, "no-detect", false, "Skip hardware detection")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch m := scoring.Mode(strings.ToLower(strings.TrimSpace(mode))); m {
	case scoring.ModeBasic, scoring.ModeIntelligent, scoring.ModeVision:
		opts.Context.Mode = m
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
	if opts.Context.MinChars < 0 || opts.Context.MaxChars < 0 {
		return nil, fmt.Errorf("character bounds must not be negative")
	}
	if opts.Context.MaxChars > 0 && opts.Context.MinChars > opts.Context.MaxChars {
		return nil, fmt.Errorf("min-chars %d exceeds max-chars %d", opts.Context.MinChars, opts.Context.MaxChars)
	}
	for _, p := range strings.Split(platforms, ",") {
		if p = strings.TrimSpace(p); p != "" {
			opts.Context.Platforms = append(opts.Context.Platforms, p)
		}
	}
	opts.Candidates = fs.Args()
	return opts, nil
}

func printRankUsage() {
	fmt.Println("Usage: orchestrator rank [options] [model...]")
	fmt.Println("\nOptions:")
	fmt.Println("  -config <path>      Config file (default config.yaml)")
	fmt.Println("  -mode <mode>        basic, intelligent or vision")
	fmt.Println("  -language <code>    Output language (default es)")
	fmt.Println("  -min-chars <n>      Minimum output characters")
	fmt.Println("  -max-chars <n>      Maximum output characters")
	fmt.Println("  -deep               Request deep thinking")
	fmt.Println("  -speed | -quality   Bias the weights")
	fmt.Println("  -remember           Store the primary model for the mode")
	fmt.Println("  -no-detect          Skip hardware detection")
}

func handleRankCommand(args []string) {
	opts, err := ParseRankCommand(args)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		printRankUsage()
		os.Exit(1)
	}

	loadDotEnv()
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		fmt.Printf("Error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer a.close()

	if !opts.SkipDetection {
		a.detectHardware(ctx)
	}

	candidates := opts.Candidates
	if len(candidates) == 0 {
		if candidates, err = a.ollama.ListModels(ctx); err != nil {
			fmt.Printf("Warning: listing installed models failed: %v\n", err)
		}
	}

	hw := a.hardware.Current()
	shaped, adjustments := scoring.AdaptContextForHardware(opts.Context, hw)
	var profile hardware.Profile
	if hw != nil {
		profile = *hw
	}
	ranking := a.engine.Rank(shaped, profile, candidates)

	for _, adj := range adjustments {
		fmt.Printf("Adjusted: %s\n", adj)
	}
	printRanking(os.Stdout, ranking)

	if opts.Remember {
		if err = a.decisions.Save(ctx, string(shaped.Mode), ranking.Primary.ModelName); err != nil {
			fmt.Printf("Error: saving decision: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nRemembered %s for mode %s\n", ranking.Primary.ModelName, shaped.Mode)
	}
}

func printRanking(out io.Writer, r scoring.Ranking) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tSCORE\tTIER\tFIRST TOKEN\tVRAM\tREASON")
	fmt.Fprintln(w, "-----\t-----\t----\t-----------\t----\t------")
	for _, res := range r.AllRanked {
		fmt.Fprintf(w, "%s\t%d\t%s\t%.0fms\t%.1fGB\t%s\n",
			res.ModelName, res.Score, res.Tier, res.EstimatedFirstTokenMs, res.EstimatedVRAMUsageGB, res.Reason)
	}
	w.Flush()

	for _, res := range r.AllRanked {
		for _, warning := range res.Warnings {
			fmt.Fprintf(out, "warning: %s: %s\n", res.ModelName, warning)
		}
	}
}
