package kv

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tomkarw/kiwi-store/cmd/util"
	"github.com/tomkarw/kiwi-store/lib/kv"
	"github.com/tomkarw/kiwi-store/rpc/common"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for kiwi-store servers",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

// perfResult bundles a benchmark result with its latency distribution and
// the number of backpressure refusals observed
type perfResult struct {
	bench        testing.BenchmarkResult
	latencies    gometrics.Histogram
	backpressure int64
}

func init() {
	// add flags
	key := "skip"
	KeyValueCommands.PersistentFlags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	KeyValueCommands.PersistentFlags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	KeyValueCommands.PersistentFlags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	KeyValueCommands.PersistentFlags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for kiwi-store servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	// Create results map
	results := make(map[string]*perfResult)

	runBenchmark := func(name string, op func(key string, largeValue []byte) error) {
		if shouldSkip(name) {
			results[name] = &perfResult{}
			printResult(name, results[name])
			return
		}

		// Latency histogram with exponentially decaying sample
		hist := gometrics.NewHistogram(gometrics.NewExpDecaySample(1028, 0.015))
		var backpressure int64

		// prepare large value once
		largeValue := make([]byte, perfLargeValueSizeKB*1024)

		// prepare keys
		getKey, iter := getKeys(name)

		bench := testing.Benchmark(func(b *testing.B) {
			// seed keys so read benchmarks hit existing entries
			iter(func(k string) {
				if err := kvClient.Set(k, []byte("test")); err != nil {
					log.Printf("(%s) - error seeding key: %v\n", name, err)
				}
			})

			// cleanup
			b.Cleanup(func() {
				iter(func(k string) {
					if _, err := kvClient.Remove(k); err != nil {
						log.Printf("(%s) - error removing key: %v\n", name, err)
					}
				})
			})

			b.SetParallelism(perfNumThreads)

			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				counter := 0
				for pb.Next() {
					start := time.Now()
					err := op(getKey(counter), largeValue)
					hist.Update(time.Since(start).Nanoseconds())

					if err != nil {
						if kv.IsBackpressure(err) {
							atomic.AddInt64(&backpressure, 1)
						} else {
							log.Printf("(%s) - error: %v\n", name, err)
						}
					}
					counter++
				}
			})
		})

		results[name] = &perfResult{
			bench:        bench,
			latencies:    hist,
			backpressure: atomic.LoadInt64(&backpressure),
		}
		printResult(name, results[name])
	}

	runBenchmark("set", func(key string, _ []byte) error {
		return kvClient.Set(key, []byte("test"))
	})

	runBenchmark("set-large", func(key string, largeValue []byte) error {
		return kvClient.Set(key, largeValue)
	})

	runBenchmark("get", func(key string, _ []byte) error {
		_, _, err := kvClient.Get(key)
		return err
	})

	runBenchmark("get-missing", func(key string, _ []byte) error {
		_, _, err := kvClient.Get(key + "-missing")
		return err
	})

	runBenchmark("remove", func(key string, _ []byte) error {
		_, err := kvClient.Remove(key)
		return err
	})

	var mixedCounter int64
	runBenchmark("mixed", func(key string, _ []byte) error {
		switch atomic.AddInt64(&mixedCounter, 1) % 3 {
		case 0:
			return kvClient.Set(key, []byte("test"))
		case 1:
			_, _, err := kvClient.Get(key)
			return err
		default:
			_, err := kvClient.Remove(key)
			return err
		}
	})

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result *perfResult) {
	if result.latencies == nil || result.bench.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)
	ps := result.latencies.Percentiles([]float64{0.5, 0.95, 0.99})

	fmt.Printf("%-20s%.0fns/op\t%.0f ops/sec\tp50=%s p95=%s p99=%s",
		test, nsPerOp, opsPerSec,
		time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(ps[2]))
	if result.backpressure > 0 {
		fmt.Printf("\trefused(backpressure)=%d", result.backpressure)
	}
	fmt.Println()
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]*perfResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "OpsPerSec", "P50Ns", "P95Ns", "P99Ns", "Backpressure", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"Serializer", "Transport", "Threads", "LargeValueSizeKB", "KeysCount",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		skipped := result.latencies == nil || result.bench.NsPerOp() == 0

		var nsPerOp, opsPerSec float64
		ps := []float64{0, 0, 0}
		if !skipped {
			nsPerOp = math.Max(float64(result.bench.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
			ps = result.latencies.Percentiles([]float64{0.5, 0.95, 0.99})
		}

		record := []string{
			test,
			strconv.FormatFloat(nsPerOp, 'f', 0, 64),
			strconv.FormatFloat(opsPerSec, 'f', 2, 64),
			strconv.FormatFloat(ps[0], 'f', 0, 64),
			strconv.FormatFloat(ps[1], 'f', 0, 64),
			strconv.FormatFloat(ps[2], 'f', 0, 64),
			strconv.FormatInt(result.backpressure, 10),
			strconv.FormatBool(skipped),
			strings.Join(config.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.RetryCount),
			strconv.Itoa(config.ConnectionsPerEndpoint),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %v", err)
		}
	}

	return nil
}
