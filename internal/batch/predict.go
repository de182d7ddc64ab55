// Package batch scores user/item pairs in parallel, sharing the fitted model
// with the worker pool through a model store instead of re-encoding it for
// every worker.
package batch

import (
	"fmt"
	"io"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"modelshare/internal/sharing"
	"modelshare/pkg/types"
)

var zlog = zerolog.Nop()

// SetLogger installs the structured logger used by batch scoring.
func SetLogger(l zerolog.Logger) { zlog = l }

// Pair is one (user, item) to score.
type Pair struct {
	User string
	Item string
}

// Prediction is the scored result for one pair.
type Prediction struct {
	User  string
	Item  string
	Score float64
}

// Options controls batch scoring.
type Options struct {
	// Workers is the scoring parallelism. Zero means one worker per CPU;
	// one worker short-circuits to the no-op store.
	Workers int
}

// Predict scores every pair with the model. The model is put into a store
// once; each worker resolves it through its own client, so repeated tasks
// for one worker hit the client cache rather than the store.
func Predict(ctx *sharing.Context, model types.Scorer, pairs []Pair, opts Options) ([]Prediction, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	store := sharing.SelectStore(ctx, true, workers == 1)
	zlog.Info().Str("store", fmt.Sprint(store)).Int("workers", workers).
		Int("pairs", len(pairs)).Msg("batch scoring")

	act, err := sharing.Enter(ctx, store)
	if err != nil {
		return nil, err
	}

	results, err := scoreAll(store, model, pairs, workers)

	if xerr := act.Exit(); xerr != nil && err == nil {
		err = xerr
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

func scoreAll(store sharing.ModelStore, model types.Scorer, pairs []Pair, workers int) ([]Prediction, error) {
	key, err := store.PutModel(model)
	if err != nil {
		return nil, err
	}

	// one task per user, like a per-user recommendation loop
	blocks := groupByUser(pairs)
	results := make([]Prediction, len(pairs))

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for _, block := range blocks {
		g.Go(func() error {
			client := store.Client()
			m, err := client.GetModel(key)
			if err != nil {
				return err
			}
			scorer, ok := m.(types.Scorer)
			if !ok {
				return fmt.Errorf("batch: stored model is %T, not a scorer", m)
			}
			for _, i := range block {
				results[i] = Prediction{
					User:  pairs[i].User,
					Item:  pairs[i].Item,
					Score: scorer.Score(pairs[i].Item),
				}
			}
			if c, ok := client.(io.Closer); ok {
				return c.Close()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// groupByUser collects pair indices per user, preserving first-seen order.
func groupByUser(pairs []Pair) [][]int {
	order := map[string]int{}
	var blocks [][]int
	for i, p := range pairs {
		b, ok := order[p.User]
		if !ok {
			b = len(blocks)
			order[p.User] = b
			blocks = append(blocks, nil)
		}
		blocks[b] = append(blocks[b], i)
	}
	return blocks
}
