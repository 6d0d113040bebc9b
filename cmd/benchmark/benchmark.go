package benchmark

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/imageclassifier-go/internal/analysis"
	"github.com/tphakala/imageclassifier-go/internal/conf"
)

const (
	benchImageWidth  = 640
	benchImageHeight = 480
)

// Command creates the benchmark command.
func Command(settings *conf.Settings) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Run inference benchmark",
		Long:  "Measure end-to-end recognition time with and without the XNNPACK delegate.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if duration < time.Second {
				return fmt.Errorf("duration must be at least 1s, got %s", duration)
			}
			return runBenchmark(cmd.Context(), settings, duration)
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "how long to run each configuration")
	return cmd
}

// benchmarkResults stores benchmark metrics
type benchmarkResults struct {
	recognitions int
	avgTime      time.Duration
	perSecond    float64
}

func runBenchmark(ctx context.Context, settings *conf.Settings, duration time.Duration) error {
	var xnnpackResults, standardResults benchmarkResults
	img := noiseImage(benchImageWidth, benchImageHeight)

	fmt.Println("🚀 Testing with XNNPACK delegate:")
	settings.Classifier.UseXNNPACK = true
	if err := runRecognitionBenchmark(ctx, settings, img, duration, &xnnpackResults); err != nil {
		fmt.Printf("❌ XNNPACK benchmark failed: %v\n", err)
	}

	fmt.Println("\n🐌 Testing standard CPU inference:")
	settings.Classifier.UseXNNPACK = false
	if err := runRecognitionBenchmark(ctx, settings, img, duration, &standardResults); err != nil {
		return fmt.Errorf("standard CPU inference benchmark failed: %w", err)
	}

	fmt.Printf("\nResults:\n")
	fmt.Printf("Method         Recognition Time   Throughput\n")
	fmt.Printf("─────────────  ─────────────────  ──────────────────────\n")
	printRow("Standard", standardResults)
	printRow("XNNPACK", xnnpackResults)
	fmt.Printf("─────────────  ─────────────────  ──────────────────────\n")

	if xnnpackResults.recognitions > 0 && standardResults.recognitions > 0 {
		improvement := (standardResults.avgTime.Seconds() - xnnpackResults.avgTime.Seconds()) /
			standardResults.avgTime.Seconds() * 100
		fmt.Printf("\n🚀 Speed improvement with XNNPACK: %.1f%%\n", improvement)

		best := min(xnnpackResults.avgTime, standardResults.avgTime)
		rating, description := getPerformanceRating(best)
		fmt.Printf("System Rating: %s, %s\n", rating, description)
	}
	return nil
}

func printRow(method string, r benchmarkResults) {
	if r.recognitions == 0 {
		fmt.Printf("%-13s  ❌ Failed\n", method)
		return
	}
	fmt.Printf("%-13s  %9.2f ms        %6.2f recognitions/sec\n",
		method, float64(r.avgTime.Microseconds())/1000, r.perSecond)
}

func runRecognitionBenchmark(ctx context.Context, settings *conf.Settings, img image.Image, duration time.Duration, results *benchmarkResults) error {
	cls, err := analysis.Loader(settings, nil)()
	if err != nil {
		return err
	}
	defer cls.Close()

	// warm up allocations and delegate kernels
	if _, err := cls.RecognizeContext(ctx, img, 0); err != nil {
		return fmt.Errorf("recognition failed: %w", err)
	}

	fmt.Printf("⏳ Running benchmark for %s...\n", duration)
	var (
		count int
		total time.Duration
		start = time.Now()
	)
	for time.Since(start) < duration {
		if err := ctx.Err(); err != nil {
			return err
		}

		// cycle orientations so every rotation path is measured
		t := time.Now()
		if _, err := cls.RecognizeContext(ctx, img, (count%4)*90); err != nil {
			return fmt.Errorf("recognition failed: %w", err)
		}
		total += time.Since(t)
		count++

		if count%10 == 0 {
			fmt.Printf("\r🔄 Recognitions: \033[1;36m%d\033[0m, Average time: \033[1;33m%.2fms\033[0m",
				count, float64((total/time.Duration(count)).Microseconds())/1000)
		}
	}
	fmt.Println()

	results.recognitions = count
	results.avgTime = total / time.Duration(count)
	results.perSecond = float64(count) / time.Since(start).Seconds()
	return nil
}

// noiseImage returns a deterministic random RGB image.
func noiseImage(w, h int) image.Image {
	rng := rand.New(rand.NewPCG(1, 2))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			v := rng.Uint32()
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16), A: 255})
		}
	}
	return img
}

func getPerformanceRating(d time.Duration) (rating, description string) {
	ms := float64(d.Microseconds()) / 1000
	switch {
	case ms > 1000:
		return "❌ Very Poor", "System is too slow for interactive classification"
	case ms > 500:
		return "⚠️ Poor", "Expect noticeable delay per photo"
	case ms > 200:
		return "👍 Decent", "System can classify photos at a comfortable pace"
	case ms > 50:
		return "✨ Good", "System will perform well"
	case ms > 10:
		return "🏆 Excellent", "System will perform excellently"
	default:
		return "🚀 Superb", "System will perform exceptionally well"
	}
}
