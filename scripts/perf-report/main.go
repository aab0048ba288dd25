// Package main runs reproducible parse/format performance measurements for
// the SystemVerilog formatting engine.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/antmicro/verible/internal/format"
	"github.com/antmicro/verible/internal/syntax"
)

const (
	setSmall   = "small"
	setTypical = "typical"
	setLarge   = "large"
	setInvalid = "invalid"

	smallThreshold   = 2 * 1024
	largeThreshold   = 16 * 1024
	maxExternalSmall = 32
	maxExternalType  = 20
	maxExternalLarge = 10
)

type config struct {
	externalCorpusRoot string
	iterations         int
	warmup             int
	columnLimit        int
	maxSearchStates    int
	jsonPath           string
}

type corpusFile struct {
	Path    string `json:"path"`
	Set     string `json:"set"`
	Source  string `json:"source"`
	Bytes   int    `json:"bytes"`
	Invalid bool   `json:"invalid"`
}

type sampleStats struct {
	Samples int     `json:"samples"`
	P50MS   float64 `json:"p50_ms"`
	P95MS   float64 `json:"p95_ms"`
	MinMS   float64 `json:"min_ms"`
	MaxMS   float64 `json:"max_ms"`
	MeanMS  float64 `json:"mean_ms"`
}

type benchSetReport struct {
	Set            string      `json:"set"`
	Files          int         `json:"files"`
	Iterations     int         `json:"iterations"`
	Samples        int         `json:"samples"`
	SkippedFiles   int         `json:"skipped_files,omitempty"`
	ExhaustedFiles int         `json:"resource_exhausted_files,omitempty"`
	Stats          sampleStats `json:"stats"`
	Notes          []string    `json:"notes,omitempty"`
}

type report struct {
	GeneratedAt  time.Time               `json:"generated_at"`
	GoVersion    string                  `json:"go_version"`
	GOOS         string                  `json:"goos"`
	GOARCH       string                  `json:"goarch"`
	CPUs         int                     `json:"cpus"`
	Config       map[string]any          `json:"config"`
	Corpus       map[string][]corpusFile `json:"corpus"`
	CorpusCounts map[string]int          `json:"corpus_counts"`
	ParseBench   []benchSetReport        `json:"parse_bench"`
	FormatBench  []benchSetReport        `json:"format_bench"`
	Warnings     []string                `json:"warnings,omitempty"`
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "perf-report: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() config {
	var cfg config
	flag.StringVar(&cfg.externalCorpusRoot, "external-corpus-root", "", "optional path to a tree of .sv files to bucket by size")
	flag.IntVar(&cfg.iterations, "iterations", 15, "benchmark iterations per file")
	flag.IntVar(&cfg.warmup, "warmup", 2, "warmup iterations per file")
	flag.IntVar(&cfg.columnLimit, "column-limit", 100, "formatter column limit")
	flag.IntVar(&cfg.maxSearchStates, "max-search-states", 0, "wrap-search state budget per line (0 uses the formatter default)")
	flag.StringVar(&cfg.jsonPath, "json", "", "optional JSON report output path")
	flag.Parse()
	return cfg
}

func run(cfg config) error {
	if cfg.iterations <= 0 {
		return errors.New("iterations must be > 0")
	}
	if cfg.warmup < 0 {
		return errors.New("warmup must be >= 0")
	}

	ctx := context.Background()
	corpus, warnings, err := buildCorpus(cfg.externalCorpusRoot)
	if err != nil {
		return err
	}

	parseBench, err := runParseBench(ctx, corpus, cfg)
	if err != nil {
		return err
	}
	formatBench, err := runFormatBench(ctx, corpus, cfg)
	if err != nil {
		return err
	}

	rep := report{
		GeneratedAt:  time.Now().UTC(),
		GoVersion:    runtime.Version(),
		GOOS:         runtime.GOOS,
		GOARCH:       runtime.GOARCH,
		CPUs:         runtime.NumCPU(),
		Config:       configJSON(cfg),
		Corpus:       corpus,
		CorpusCounts: mapCorpusCounts(corpus),
		ParseBench:   parseBench,
		FormatBench:  formatBench,
		Warnings:     warnings,
	}

	printReport(rep)
	if cfg.jsonPath != "" {
		if err := writeJSON(cfg.jsonPath, rep); err != nil {
			return err
		}
		fmt.Printf("\nJSON report written to %s\n", cfg.jsonPath)
	}

	return nil
}

func buildCorpus(externalRoot string) (map[string][]corpusFile, []string, error) {
	repoRoot, err := findRepoRoot()
	if err != nil {
		return nil, nil, err
	}

	corpus := map[string][]corpusFile{
		setSmall:   {},
		setTypical: {},
		setLarge:   {},
		setInvalid: {},
	}
	var warnings []string

	added := make(map[string]struct{})
	addFile := func(set, source, path string, invalid bool) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if _, ok := added[set+"|"+abs]; ok {
			return nil
		}
		info, err := os.Stat(abs)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		corpus[set] = append(corpus[set], corpusFile{
			Path:    abs,
			Set:     set,
			Source:  source,
			Bytes:   int(info.Size()),
			Invalid: invalid,
		})
		added[set+"|"+abs] = struct{}{}
		return nil
	}

	// The repo's own corpus fixtures guarantee both buckets exist even
	// without an external corpus supplied.
	if err := addDirFiles(filepath.Join(repoRoot, "testdata", "corpus", "valid"), "repo-corpus-valid", false, setSmall, addFile); err != nil {
		warnings = append(warnings, fmt.Sprintf("repo corpus valid set: %v", err))
	}
	if err := addDirFiles(filepath.Join(repoRoot, "testdata", "corpus", "invalid"), "repo-corpus-invalid", true, setInvalid, addFile); err != nil {
		warnings = append(warnings, fmt.Sprintf("repo corpus invalid set: %v", err))
	}

	if strings.TrimSpace(externalRoot) == "" {
		warnings = append(warnings, "external corpus not provided; benchmark breadth is limited to repo fixtures")
		sortCorpus(corpus)
		return corpus, warnings, nil
	}

	absExternal, err := filepath.Abs(externalRoot)
	if err != nil {
		return nil, nil, err
	}
	info, err := os.Stat(absExternal)
	if err != nil {
		return nil, nil, fmt.Errorf("external-corpus-root: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("external-corpus-root is not a directory: %s", absExternal)
	}

	var normalFiles []corpusFile
	err = filepath.WalkDir(absExternal, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".git") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".sv" && filepath.Ext(path) != ".svh" {
			return nil
		}
		st, err := d.Info()
		if err != nil {
			return err
		}
		normalFiles = append(normalFiles, corpusFile{Path: path, Source: "external-corpus", Bytes: int(st.Size())})
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walk external-corpus-root: %w", err)
	}

	sort.Slice(normalFiles, func(i, j int) bool {
		if normalFiles[i].Bytes != normalFiles[j].Bytes {
			return normalFiles[i].Bytes < normalFiles[j].Bytes
		}
		return normalFiles[i].Path < normalFiles[j].Path
	})

	smallCount, typicalCount, largeCount := 0, 0, 0
	for _, f := range normalFiles {
		switch {
		case f.Bytes < smallThreshold && smallCount < maxExternalSmall:
			if err := addFile(setSmall, f.Source, f.Path, false); err != nil {
				return nil, nil, err
			}
			smallCount++
		case f.Bytes >= smallThreshold && f.Bytes < largeThreshold && typicalCount < maxExternalType:
			if err := addFile(setTypical, f.Source, f.Path, false); err != nil {
				return nil, nil, err
			}
			typicalCount++
		case f.Bytes >= largeThreshold && largeCount < maxExternalLarge:
			if err := addFile(setLarge, f.Source, f.Path, false); err != nil {
				return nil, nil, err
			}
			largeCount++
		}
	}

	sortCorpus(corpus)
	return corpus, warnings, nil
}

func addDirFiles(dir, source string, invalid bool, set string, addFile func(set, source, path string, invalid bool) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".sv" {
			continue
		}
		if err := addFile(set, source, filepath.Join(dir, e.Name()), invalid); err != nil {
			return err
		}
	}
	return nil
}

func sortCorpus(corpus map[string][]corpusFile) {
	for k := range corpus {
		sort.Slice(corpus[k], func(i, j int) bool { return corpus[k][i].Path < corpus[k][j].Path })
	}
}

func mapCorpusCounts(corpus map[string][]corpusFile) map[string]int {
	out := make(map[string]int, len(corpus))
	for k, files := range corpus {
		out[k] = len(files)
	}
	return out
}

func runParseBench(ctx context.Context, corpus map[string][]corpusFile, cfg config) ([]benchSetReport, error) {
	sets := []string{setSmall, setTypical, setLarge, setInvalid}
	out := make([]benchSetReport, 0, len(sets))
	for _, set := range sets {
		files := corpus[set]
		samples, notes, err := benchmarkParse(ctx, files, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse bench %s: %w", set, err)
		}
		out = append(out, benchSetReport{
			Set:        set,
			Files:      len(files),
			Iterations: cfg.iterations,
			Samples:    len(samples),
			Stats:      durationStats(samples),
			Notes:      notes,
		})
	}
	return out, nil
}

func benchmarkParse(ctx context.Context, files []corpusFile, cfg config) ([]time.Duration, []string, error) {
	var samples []time.Duration
	var notes []string
	for _, f := range files {
		src, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", f.Path, err)
		}
		for range cfg.warmup {
			if _, err := syntax.Parse(ctx, src, syntax.ParseOptions{URI: f.Path}); err != nil {
				return nil, nil, fmt.Errorf("warmup parse %s: %w", f.Path, err)
			}
		}
		for range cfg.iterations {
			start := time.Now()
			if _, err := syntax.Parse(ctx, src, syntax.ParseOptions{URI: f.Path}); err != nil {
				return nil, nil, fmt.Errorf("parse %s: %w", f.Path, err)
			}
			samples = append(samples, time.Since(start))
		}
		if f.Invalid {
			notes = append(notes, filepath.Base(f.Path))
		}
	}
	if len(notes) > 3 {
		notes = []string{
			"invalid-corpus examples include " + strings.Join(notes[:3], ", "),
			fmt.Sprintf("... and %d more", len(notes)-3),
		}
	}
	return samples, notes, nil
}

func runFormatBench(ctx context.Context, corpus map[string][]corpusFile, cfg config) ([]benchSetReport, error) {
	sets := []string{setSmall, setTypical, setLarge}
	out := make([]benchSetReport, 0, len(sets))
	for _, set := range sets {
		files := corpus[set]
		samples, skipped, exhausted, notes, err := benchmarkFormat(ctx, files, cfg)
		if err != nil {
			return nil, fmt.Errorf("format bench %s: %w", set, err)
		}
		out = append(out, benchSetReport{
			Set:            set,
			Files:          len(files),
			Iterations:     cfg.iterations,
			Samples:        len(samples),
			SkippedFiles:   skipped,
			ExhaustedFiles: exhausted,
			Stats:          durationStats(samples),
			Notes:          notes,
		})
	}
	return out, nil
}

type parsedFixture struct {
	file corpusFile
	tree *syntax.Tree
}

func (cfg config) formatOptions() format.Options {
	return format.Options{
		Style: format.Style{
			ColumnLimit:                  cfg.columnLimit,
			FormatModulePortDeclarations: true,
		},
		Execution: format.ExecutionControl{
			MaxSearchStates: cfg.maxSearchStates,
		},
	}
}

func benchmarkFormat(ctx context.Context, files []corpusFile, cfg config) ([]time.Duration, int, int, []string, error) {
	fixtures := make([]parsedFixture, 0, len(files))
	var notes []string
	skipped := 0
	exhausted := 0
	for _, f := range files {
		src, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, 0, 0, nil, fmt.Errorf("read %s: %w", f.Path, err)
		}
		tree, err := syntax.Parse(ctx, src, syntax.ParseOptions{URI: f.Path})
		if err != nil {
			return nil, 0, 0, nil, fmt.Errorf("parse %s: %w", f.Path, err)
		}
		res, err := format.Document(ctx, tree, cfg.formatOptions())
		if err != nil {
			if format.IsErrUnsafeToFormat(err) {
				skipped++
				notes = append(notes, "skipped unsafe format: "+filepath.Base(f.Path))
				continue
			}
			return nil, 0, 0, nil, fmt.Errorf("format precheck %s: %w", f.Path, err)
		}
		if res.ResourceExhausted {
			exhausted++
		}
		fixtures = append(fixtures, parsedFixture{file: f, tree: tree})
	}

	var samples []time.Duration
	for _, pf := range fixtures {
		for range cfg.warmup {
			if _, err := format.Document(ctx, pf.tree, cfg.formatOptions()); err != nil {
				return nil, 0, 0, nil, fmt.Errorf("warmup format %s: %w", pf.file.Path, err)
			}
		}
		for range cfg.iterations {
			start := time.Now()
			if _, err := format.Document(ctx, pf.tree, cfg.formatOptions()); err != nil {
				return nil, 0, 0, nil, fmt.Errorf("format %s: %w", pf.file.Path, err)
			}
			samples = append(samples, time.Since(start))
		}
	}
	if len(notes) > 5 {
		notes = notes[:5]
		notes = append(notes, "additional files skipped")
	}
	return samples, skipped, exhausted, notes, nil
}

func durationStats(samples []time.Duration) sampleStats {
	if len(samples) == 0 {
		return sampleStats{}
	}
	ns := make([]int64, len(samples))
	var sum int64
	for i, d := range samples {
		ns[i] = d.Nanoseconds()
		sum += ns[i]
	}
	slices.Sort(ns)
	p50 := quantile(ns, 0.50)
	p95 := quantile(ns, 0.95)
	return sampleStats{
		Samples: len(samples),
		P50MS:   nanosToMS(p50),
		P95MS:   nanosToMS(p95),
		MinMS:   nanosToMS(ns[0]),
		MaxMS:   nanosToMS(ns[len(ns)-1]),
		MeanMS:  nanosToMS(sum / int64(len(ns))),
	}
}

func quantile(sorted []int64, q float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(float64(len(sorted)-1) * q)
	return sorted[idx]
}

func nanosToMS(ns int64) float64 {
	return float64(ns) / float64(time.Millisecond)
}

func printReport(rep report) {
	fmt.Printf("SystemVerilog Formatter Performance Report\n")
	fmt.Printf("Generated: %s\n", rep.GeneratedAt.Format(time.RFC3339))
	fmt.Printf("Go: %s | %s/%s | CPUs=%d\n", rep.GoVersion, rep.GOOS, rep.GOARCH, rep.CPUs)
	if ext, ok := rep.Config["external_corpus_root"].(string); ok && ext != "" {
		fmt.Printf("External corpus: %s\n", ext)
	}
	fmt.Println()
	fmt.Println("Corpus sets")
	for _, set := range []string{setSmall, setTypical, setLarge, setInvalid} {
		files := rep.Corpus[set]
		totalBytes := 0
		for _, f := range files {
			totalBytes += f.Bytes
		}
		fmt.Printf("- %-9s files=%3d total=%7d bytes\n", set, len(files), totalBytes)
	}
	if len(rep.Warnings) > 0 {
		fmt.Println()
		fmt.Println("Warnings")
		for _, w := range rep.Warnings {
			fmt.Printf("- %s\n", w)
		}
	}
	fmt.Println()
	printBenchTable("Parse + diagnostics (warm)", rep.ParseBench)
	fmt.Println()
	printBenchTable("Format document (warm, parse tree prebuilt)", rep.FormatBench)
}

func printBenchTable(title string, rows []benchSetReport) {
	fmt.Println(title)
	fmt.Println("set        files samples  p50(ms)  p95(ms)  mean(ms)   min    max  skipped exhausted")
	for _, r := range rows {
		fmt.Printf("%-10s %5d %7d %8.2f %8.2f %8.2f %6.2f %6.2f %7d %9d\n",
			r.Set, r.Files, r.Samples, r.Stats.P50MS, r.Stats.P95MS, r.Stats.MeanMS, r.Stats.MinMS, r.Stats.MaxMS, r.SkippedFiles, r.ExhaustedFiles)
	}
}

func writeJSON(path string, rep report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o600)
}

func findRepoRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("repository root not found")
		}
		dir = parent
	}
}

func configJSON(cfg config) map[string]any {
	return map[string]any{
		"external_corpus_root": cfg.externalCorpusRoot,
		"iterations":           cfg.iterations,
		"warmup":               cfg.warmup,
		"column_limit":         cfg.columnLimit,
		"max_search_states":    cfg.maxSearchStates,
		"json":                 cfg.jsonPath,
	}
}
