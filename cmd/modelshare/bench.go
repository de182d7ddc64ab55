package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"modelshare/internal/batch"
	"modelshare/internal/rng"
	"modelshare/internal/sharing"
	"modelshare/pkg/types"
)

// buildBenchCmd measures batch scoring throughput over a shared model. With
// a metrics address it also exposes the segment counters for scraping.
func buildBenchCmd() *cobra.Command {
	var (
		users   int
		items   int
		seed    uint64
		workers int
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark batch scoring through the model store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if workers == 0 {
				workers = cfg.Workers
			}
			return runBench(users, items, seed, workers)
		},
	}
	cmd.Flags().IntVar(&users, "users", 200, "Number of synthetic users")
	cmd.Flags().IntVar(&items, "items", 50_000, "Number of synthetic items")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "Root seed for the synthetic data")
	cmd.Flags().IntVar(&workers, "workers", 0, "Scoring parallelism (0 = config, then one per CPU)")
	return cmd
}

func runBench(users, items int, seed uint64, workers int) error {
	if cfg.MetricsAddr != "" {
		r := chi.NewRouter()
		r.Handle("/metrics", promhttp.Handler())
		go func() {
			zlog.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
			if err := http.ListenAndServe(cfg.MetricsAddr, r); err != nil {
				zlog.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	if _, err := rng.InitRNG(seed); err != nil {
		return err
	}
	ratings, pairs := syntheticData(users, items)

	fitStart := time.Now()
	model := types.FitItemBias(ratings)
	zlog.Info().Int("ratings", len(ratings)).Dur("elapsed", time.Since(fitStart)).Msg("fitted model")

	ctx := sharing.NewContext()
	start := time.Now()
	preds, err := batch.Predict(ctx, model, pairs, batch.Options{Workers: workers})
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	rate := float64(len(preds)) / elapsed.Seconds()
	fmt.Printf("scored %d pairs in %s (%.0f pairs/s)\n", len(preds), elapsed.Round(time.Millisecond), rate)
	return nil
}

// syntheticData derives ratings and score requests from the root seed so
// every bench run with one seed sees identical data.
func syntheticData(users, items int) ([]types.Rating, []batch.Pair) {
	seq, _ := rng.Derive("bench", "data")
	r := seq.RNG()

	itemNames := make([]string, items)
	for i := range itemNames {
		itemNames[i] = fmt.Sprintf("item-%06d", i)
	}

	var ratings []types.Rating
	var pairs []batch.Pair
	for u := 0; u < users; u++ {
		user := fmt.Sprintf("user-%04d", u)
		for k := 0; k < 20; k++ {
			item := itemNames[r.IntN(items)]
			ratings = append(ratings, types.Rating{User: user, Item: item, Value: 1 + 4*r.Float64()})
			pairs = append(pairs, batch.Pair{User: user, Item: item})
		}
	}
	return ratings, pairs
}
