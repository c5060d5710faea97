package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"mgsearch/pkg/mgsearch"
)

const defaultWorkdir = ".mgsearch"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "build":
		return runBuild(ctx, args[1:])
	case "add":
		return runAdd(ctx, args[1:])
	case "search":
		return runSearch(ctx, args[1:])
	case "status":
		return runStatus(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	workdir := fs.String("workdir", defaultWorkdir, "index working directory")
	name := fs.String("name", "", "index name (required)")
	metricName := fs.String("metric", "jsd", "distance metric: jsd|jaccard")
	kmerSize := fs.Int("kmer-size", 50, "k-mer size")
	storeKind := fs.String("store", "sqlite", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "index.db", "sqlite database path, relative to workdir")
	if err := fs.Parse(args); err != nil {
		return err
	}

	err := mgsearch.Init(mgsearch.Options{Workdir: *workdir}, mgsearch.InitRequest{
		Name:     *name,
		Metric:   *metricName,
		KmerSize: *kmerSize,
		Store:    *storeKind,
		DBPath:   *dbPath,
	})
	if err != nil {
		return err
	}
	fmt.Printf("initialized index %s in %s\n", *name, *workdir)
	return nil
}

func runBuild(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	workdir := fs.String("workdir", defaultWorkdir, "index working directory")
	coordSize := fs.Int("k", 0, "coordinate system size")
	generations := fs.Int("generations", 0, "number of generations")
	mutationRate := fs.Float64("mutation-rate", 0, "per-gene mutation rate")
	popSize := fs.Int("population", 0, "population size")
	selectRate := fs.Float64("select-rate", 0, "fraction of best individuals selected per generation")
	randomRate := fs.Float64("random-select-rate", 0, "fraction of random lesser-fit individuals selected")
	legendSize := fs.Int("legend-size", 0, "count of best individuals to keep tracking")
	idleThreshold := fs.Int("idle-threshold", 0, "generations to continue at a local minimum before stopping")
	seed := fs.Int64("seed", 0, "random seed")
	workers := fs.Int("workers", 0, "worker count for the bulk distance build")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return usageError("build requires at least one input FASTA file")
	}

	client, err := mgsearch.New(ctx, mgsearch.Options{Workdir: *workdir})
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.Build(ctx, mgsearch.BuildRequest{
		Inputs:           fs.Args(),
		CoordSystemSize:  *coordSize,
		Generations:      *generations,
		MutationRate:     *mutationRate,
		PopulationSize:   *popSize,
		SelectRate:       *selectRate,
		RandomSelectRate: *randomRate,
		LegendSize:       *legendSize,
		IdleThreshold:    *idleThreshold,
		Seed:             *seed,
		Workers:          *workers,
	})
	if err != nil {
		return err
	}
	fmt.Printf("built index: run=%s samples=%d landmarks=%d generations=%d converged=%v fitness=%g\n",
		summary.RunID, summary.SampleCount, len(summary.Landmarks),
		summary.GenerationsRun, summary.Converged, summary.BestFitness)
	return nil
}

func runAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	workdir := fs.String("workdir", defaultWorkdir, "index working directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return usageError("add requires at least one input FASTA file")
	}

	client, err := mgsearch.New(ctx, mgsearch.Options{Workdir: *workdir})
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.Add(ctx, mgsearch.AddRequest{Inputs: fs.Args()})
	if err != nil {
		return err
	}
	fmt.Printf("added %d samples, %d total\n", summary.Added, summary.Total)
	return nil
}

func runSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	workdir := fs.String("workdir", defaultWorkdir, "index working directory")
	k := fs.Int("k", 10, "number of nearest samples to return")
	jsonOut := fs.Bool("json", false, "emit results as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("search requires exactly one query (sample name or FASTA file)")
	}

	client, err := mgsearch.New(ctx, mgsearch.Options{Workdir: *workdir})
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.Search(ctx, mgsearch.SearchRequest{Query: fs.Arg(0), K: *k})
	if err != nil {
		return err
	}
	if *jsonOut {
		return json.NewEncoder(os.Stdout).Encode(result.Hits)
	}
	for _, hit := range result.Hits {
		fmt.Printf("%s\t%g\n", hit.Name, hit.Score)
	}
	return nil
}

func runStatus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	workdir := fs.String("workdir", defaultWorkdir, "index working directory")
	jsonOut := fs.Bool("json", false, "emit status as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := mgsearch.New(ctx, mgsearch.Options{Workdir: *workdir})
	if err != nil {
		return err
	}
	defer client.Close()

	status, err := client.Status(ctx)
	if err != nil {
		return err
	}
	if *jsonOut {
		return json.NewEncoder(os.Stdout).Encode(status)
	}
	fmt.Printf("index: %s\nmetric: %s (k-mer size %d)\nsamples: %d\nbuilt: %v\n",
		status.Name, status.Metric, status.KmerSize, status.Samples, status.Built)
	if status.Built {
		fmt.Printf("run: %s\nlandmarks: %d\n", status.RunID, len(status.Landmarks))
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	workdir := fs.String("workdir", defaultWorkdir, "index working directory")
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := mgsearch.New(ctx, mgsearch.Options{Workdir: *workdir})
	if err != nil {
		return err
	}
	defer client.Close()

	records, err := client.Runs(ctx, *limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no build runs found")
		return nil
	}
	if *jsonOut {
		return json.NewEncoder(os.Stdout).Encode(records)
	}
	for _, r := range records {
		fmt.Printf("%s\t%s\tsamples=%d k=%d generations=%d/%d converged=%v fitness=%g\n",
			r.RunID, r.CreatedAtUTC, r.SampleCount, r.CoordSystemSize,
			r.GenerationsRun, r.Generations, r.Converged, r.BestFitness)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	workdir := fs.String("workdir", defaultWorkdir, "index working directory")
	runID := fs.String("run", "", "build run id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return usageError("fitness requires -run")
	}

	client, err := mgsearch.New(ctx, mgsearch.Options{Workdir: *workdir})
	if err != nil {
		return err
	}
	defer client.Close()

	history, ok, err := client.FitnessHistory(ctx, *runID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no fitness history for run %s", *runID)
	}
	for gen, best := range history {
		fmt.Printf("%d\t%g\n", gen+1, best)
	}
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: mgsearchctl <init|build|add|search|status|runs|fitness> [flags]", msg)
}
