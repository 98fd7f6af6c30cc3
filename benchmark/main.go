// Package main provides a performance benchmarking tool for the stablelint CLI.
// It measures how long `stablelint track` takes for files of growing size across
// store backends, running each case multiple times. The first run has no history
// (cold); the remaining runs re-match against the stored history (warm).
// Results are written as CSV for performance analysis and documentation.
//
// Prerequisites:
// - stablelint binary installed and available in PATH
//
// Usage: go run benchmark/main.go [work-dir]
//
//	work-dir: Scratch directory for generated sources and stores
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// BenchmarkResult holds the result of a benchmark case (cold run and average of warm runs).
type BenchmarkResult struct {
	Backend  string
	Findings int
	ColdTime string
	WarmTime string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	WorkDir  string
	Timeout  time.Duration
	Runs     int
	Sizes    []int
	Backends []string
}

// rawFinding is the subset of the raw finding document the benchmark generates.
type rawFinding struct {
	RuleKey   string    `json:"ruleKey"`
	Message   string    `json:"message"`
	TextRange textRange `json:"textRange"`
	Severity  string    `json:"severity"`
}

type textRange struct {
	StartLine       int `json:"startLine"`
	StartLineOffset int `json:"startLineOffset"`
	EndLine         int `json:"endLine"`
	EndLineOffset   int `json:"endLineOffset"`
}

func main() {
	// Parse command line arguments
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s [work-dir]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		WorkDir:  os.Args[1],
		Timeout:  2 * time.Minute,
		Runs:     4,
		Sizes:    []int{100, 1_000, 5_000},
		Backends: []string{"none", "sqlite", "badger"},
	}

	if err := checkPrerequisites(config); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	results := runBenchmarks(config)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results, config)
}

// checkPrerequisites verifies that the stablelint binary and the work directory exist
func checkPrerequisites(config BenchmarkConfig) error {
	if _, err := exec.LookPath("stablelint"); err != nil {
		return fmt.Errorf("stablelint binary not found in PATH")
	}
	return os.MkdirAll(config.WorkDir, 0o755)
}

// runBenchmarks executes every size against every backend
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d sizes, %d backends, %v timeout, %d runs\n",
		len(config.Sizes), len(config.Backends), config.Timeout, config.Runs)

	for _, size := range config.Sizes {
		caseDir := filepath.Join(config.WorkDir, fmt.Sprintf("findings-%d", size))
		raw, err := generateCase(caseDir, size)
		if err != nil {
			fmt.Printf("Skipping %d findings: %v\n", size, err)
			continue
		}
		for _, backend := range config.Backends {
			results = append(results, runBenchmarkSuite(config, caseDir, backend, size, raw))
		}
	}

	return results
}

// generateCase writes a source file with one finding per line and returns the raw findings.
func generateCase(dir string, size int) ([]byte, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var src strings.Builder
	findings := make([]rawFinding, 0, size)
	for i := 1; i <= size; i++ {
		fmt.Fprintf(&src, "\tv%d := compute(%d)\n", i, i)
		findings = append(findings, rawFinding{
			RuleKey:   fmt.Sprintf("go:S%d", 1000+i%50),
			Message:   fmt.Sprintf("Remove this unused \"v%d\" local variable.", i),
			TextRange: textRange{StartLine: i, EndLine: i, StartLineOffset: 1, EndLineOffset: 2 + len(fmt.Sprint(i))},
			Severity:  "MINOR",
		})
	}
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte(src.String()), 0o644); err != nil {
		return nil, err
	}
	return json.Marshal(findings)
}

// runBenchmarkSuite runs one case against a fresh store
func runBenchmarkSuite(config BenchmarkConfig, caseDir, backend string, size int, raw []byte) BenchmarkResult {
	fmt.Printf("Running %d findings on %s\n", size, backend)

	storeDir := filepath.Join(caseDir, "store-"+backend)
	_ = os.RemoveAll(storeDir)
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		fmt.Printf("  Failed to prepare store: %v\n", err)
	}
	connect := ""
	switch backend {
	case "sqlite":
		connect = filepath.Join(storeDir, "findings.db")
	case "badger":
		connect = filepath.Join(storeDir, "badger")
	}

	coldTime, warmTimes := runBenchmark(config, caseDir, backend, connect, raw)

	coldTimeStr := "TIMEOUT"
	if coldTime > 0 {
		coldTimeStr = fmt.Sprintf("%.3fs", coldTime)
	}
	warmAvg := "TIMEOUT"
	if len(warmTimes) > 0 {
		var sum float64
		for _, t := range warmTimes {
			sum += t
		}
		warmAvg = fmt.Sprintf("%.3fs", sum/float64(len(warmTimes)))
	}

	fmt.Printf("  Cold time: %s, Warm average: %s\n", coldTimeStr, warmAvg)

	return BenchmarkResult{
		Backend:  backend,
		Findings: size,
		ColdTime: coldTimeStr,
		WarmTime: warmAvg,
	}
}

// runBenchmark executes stablelint track multiple times and returns cold time and warm times
func runBenchmark(config BenchmarkConfig, caseDir, backend, connect string, raw []byte) (coldTime float64, warmTimes []float64) {
	args := []string{"track", "--file", "main.go", "--output", "json", "--store-backend", backend}
	if connect != "" {
		args = append(args, "--store-db-connect", connect)
	}

	var times []float64
	for run := 1; run <= config.Runs; run++ {
		start := time.Now()

		cmd := exec.Command("stablelint", args...)
		cmd.Dir = caseDir
		cmd.Stdin = bytes.NewReader(raw)

		done := make(chan bool)
		var output []byte
		var cmdErr error

		go func() {
			output, cmdErr = cmd.CombinedOutput()
			done <- true
		}()

		select {
		case <-done:
			if cmdErr == nil && isSuccess(output) {
				times = append(times, time.Since(start).Seconds())
			}
		case <-time.After(config.Timeout):
			// Timeout - don't add to times
		}
	}

	if len(times) > 0 {
		coldTime = times[0]
		warmTimes = times[1:]
	}
	return
}

// isSuccess checks if command output looks like a tracked snapshot
func isSuccess(output []byte) bool {
	outputStr := string(output)
	return strings.Contains(outputStr, `"count"`) && strings.Contains(outputStr, `"findings"`)
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("/tmp/stablelint_benchmark_%s.csv", timestamp)

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	if err := writer.Write([]string{"backend", "findings", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	// Write results
	for _, result := range results {
		if err := writer.Write([]string{result.Backend, fmt.Sprint(result.Findings), result.ColdTime, result.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results grouped by backend
func printSummary(results []BenchmarkResult, config BenchmarkConfig) {
	fmt.Printf("Benchmark complete\n")
	for _, backend := range config.Backends {
		fmt.Printf("%s:\n", backend)
		for _, result := range results {
			if result.Backend == backend {
				fmt.Printf("  %6d findings: Cold: %s, Warm: %s\n", result.Findings, result.ColdTime, result.WarmTime)
			}
		}
	}
	fmt.Printf("Benchmark script completed successfully\n")
}
