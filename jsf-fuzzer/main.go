// Copyright 2025 jsfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// jsf-fuzzer is the command-line front-end of the fuzzer: it wires the
// corpus, the engine worker pool and the mutation engine into the fuzz
// loop, and hosts the diagnostic modes.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jsfuzz/jsfuzz/pkg/corpus"
	"github.com/jsfuzz/jsfuzz/pkg/cover"
	"github.com/jsfuzz/jsfuzz/pkg/fuzzer"
	"github.com/jsfuzz/jsfuzz/pkg/js"
	"github.com/jsfuzz/jsfuzz/pkg/log"
	"github.com/jsfuzz/jsfuzz/pkg/mutator"
	"github.com/jsfuzz/jsfuzz/pkg/profile"
	"github.com/jsfuzz/jsfuzz/pkg/queue"
	"github.com/jsfuzz/jsfuzz/pkg/stats"
)

var (
	flagOutputDir     = flag.String("output-dir", "", "corpus root directory")
	flagProfile       = flag.String("profile", "v8", "engine profile (builtin name or yaml file)")
	flagWorkers       = flag.Int("workers", 4, "number of engine workers")
	flagOverwrite     = flag.Bool("overwrite", false, "overwrite an existing corpus and start fresh")
	flagInitialCorpus = flag.String("initial-corpus", "", "directory of .js seeds to ingest (with -overwrite)")
	flagResume        = flag.Bool("resume", false, "resume from existing corpus metadata")
	flagSingleTest    = flag.String("single-test", "", "execute one script and report the result")
	flagMutatorTest   = flag.String("mutator-test", "", "apply the named mutator to -single-test and print the output")
	flagMetricsAddr   = flag.String("metrics-addr", "", "serve prometheus metrics on this address")
	flagInstability   = flag.Uint("instability-threshold", 10, "executions before an unstable edge is blacklisted")
)

func main() {
	flag.Parse()
	log.EnableVerbosity()

	if *flagMutatorTest != "" {
		if err := runMutatorTest(*flagMutatorTest, *flagSingleTest); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	prof, err := profile.Load(*flagProfile)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if *flagSingleTest != "" {
		if err := runSingleTest(prof, *flagSingleTest); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	if *flagOutputDir == "" {
		log.Fatalf("-output-dir is required")
	}
	if err := runFuzzer(prof); err != nil {
		log.Fatalf("%v", err)
	}
}

func runFuzzer(prof *profile.Profile) error {
	root := *flagOutputDir
	if err := prepareOutputDir(root); err != nil {
		return err
	}

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	mgr, err := corpus.Load(root, rnd)
	if err != nil {
		return err
	}
	if !*flagResume && mgr.Len() > 0 && !*flagOverwrite {
		return fmt.Errorf("corpus at %v is not empty; pass -resume to continue or -overwrite to start over", root)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigC := make(chan os.Signal, 1)
		signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)
		<-sigC
		log.Logf(0, "shutting down, awaiting pending executions")
		cancel()
	}()

	tracker := cover.NewTracker(uint32(*flagInstability))
	pool, err := queue.NewPool(ctx, prof, tracker, *flagWorkers)
	if err != nil {
		return err
	}
	defer pool.Shutdown()

	if *flagMetricsAddr != "" {
		stats.NewGauge("jsfuzz_corpus_entries", "live corpus entries",
			func() float64 { return float64(mgr.Len()) })
		stats.NewGauge("jsfuzz_edges_seen", "stable edges seen",
			func() float64 { return float64(tracker.SeenCount()) })
		stats.NewGauge("jsfuzz_edges_total", "engine edge space",
			func() float64 { return float64(cover.NumEdges()) })
		stats.Serve(*flagMetricsAddr)
	}

	if *flagInitialCorpus != "" {
		if err := ingestInitialCorpus(ctx, mgr, pool, *flagInitialCorpus); err != nil {
			return err
		}
	}
	log.Logf(0, "fuzzing %v with %v workers, %v corpus entries, %v engine edges",
		prof.Name, *flagWorkers, mgr.Len(), cover.NumEdges())

	f := fuzzer.New(&fuzzer.Config{
		Corpus:   mgr,
		Pool:     pool,
		Mutators: mutator.Catalogue(mutator.DefaultConfig()),
		Rand:     rnd,
	})
	f.Loop(ctx)
	log.Logf(0, "done: %v executions scheduled", f.Iterations())
	return nil
}

func prepareOutputDir(root string) error {
	if !*flagOverwrite {
		return nil
	}
	if _, err := os.Stat(root); err == nil {
		fmt.Printf("Output directory %v already exists. Overwrite it? (y/N) ", root)
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if strings.ToLower(strings.TrimSpace(line)) != "y" {
			return fmt.Errorf("aborting")
		}
		if err := os.RemoveAll(root); err != nil {
			return err
		}
	}
	return os.MkdirAll(root, 0755)
}

// ingestInitialCorpus reads seed files, minifies them and lets the engine
// decide which ones execute cleanly with coverage; those become the
// starting corpus.
func ingestInitialCorpus(ctx context.Context, mgr *corpus.Manager, pool *queue.Pool, dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.js"))
	if err != nil {
		return err
	}
	ingested := 0
	for _, file := range files {
		source, err := os.ReadFile(file)
		if err != nil {
			log.Logf(0, "skipping %v: %v", file, err)
			continue
		}
		ast, err := js.Parse(source)
		if err != nil {
			log.Logf(1, "skipping unparseable seed %v: %v", file, err)
			continue
		}
		mutator.Minify(ast)
		script := js.Emit(ast)
		res, err := pool.Execute(ctx, script)
		if err != nil {
			return err
		}
		if res.IsCrash || res.IsTimeout || res.ExitCode != 0 {
			log.Logf(1, "engine rejected seed %v (exit %v, timeout %v)",
				file, res.ExitCode, res.IsTimeout)
			continue
		}
		if !res.NewCoverage {
			log.Logf(1, "seed %v adds no stable new coverage", file)
			continue
		}
		entry, err := mgr.AddEntry(script, res.EdgeHits, 0, res.ExecTime, false)
		if err != nil {
			return err
		}
		if entry != nil {
			ingested++
		}
	}
	log.Logf(0, "ingested %v/%v seeds from %v", ingested, len(files), dir)
	return nil
}

// runSingleTest executes one script and prints the decoded status,
// coverage delta and timing.
func runSingleTest(prof *profile.Profile, path string) error {
	script, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	ctx := context.Background()
	tracker := cover.NewTracker(uint32(*flagInstability))
	pool, err := queue.NewPool(ctx, prof, tracker, 1)
	if err != nil {
		return err
	}
	defer pool.Shutdown()

	res, err := pool.Execute(ctx, script)
	if err != nil {
		return err
	}
	fmt.Printf("exit code: %v\nsignal: %v\ncrash: %v\ntimeout: %v\nnew edges: %v\nexec time: %v\n",
		res.ExitCode, res.Signal, res.IsCrash, res.IsTimeout, len(res.EdgeHits), res.ExecTime)
	if out := pool.DrainOutput(); len(out) > 0 {
		fmt.Printf("engine output:\n%s\n", log.Truncate(out, 4<<10, 1<<10))
	}
	return nil
}

// runMutatorTest applies one named mutator to a script and prints the
// emitted source; a round-trip check that needs no engine.
func runMutatorTest(name, scriptPath string) error {
	if scriptPath == "" {
		return fmt.Errorf("-mutator-test also needs -single-test <script>")
	}
	m := mutator.ByName(name, mutator.DefaultConfig())
	if m == nil {
		return fmt.Errorf("unknown mutator %q", name)
	}
	source, err := os.ReadFile(scriptPath)
	if err != nil {
		return err
	}
	ast, err := js.Parse(source)
	if err != nil {
		return err
	}
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	if m.IsSplicer() {
		donor, err := js.Clone(ast)
		if err != nil {
			return err
		}
		spliced, err := m.Splice(ast, donor, rnd)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", js.Emit(spliced))
		return nil
	}
	mutated, err := m.Mutate(ast, rnd)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", js.Emit(mutated))
	return nil
}
