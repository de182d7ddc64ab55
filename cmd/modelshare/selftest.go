package main

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"modelshare/internal/rng"
	"modelshare/internal/sharing"
	"modelshare/pkg/types"
)

// buildSelftestCmd wires the end-to-end check: store a model, hand the key
// to a child process over a pipe, and verify the child reads back the same
// offsets through the shared segments.
func buildSelftestCmd() *cobra.Command {
	var items int
	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Store a model and verify a child process can resolve it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelftest(items)
		},
	}
	cmd.Flags().IntVar(&items, "items", 100_000, "Number of item offsets in the test model")
	return cmd
}

func runSelftest(items int) error {
	model := makeTestModel(items)
	want := modelChecksum(model)

	ctx := sharing.NewContext()
	store := selectStore(ctx)
	zlog.Info().Str("store", fmt.Sprint(store)).Int("items", items).Msg("selftest starting")

	act, err := sharing.Enter(ctx, store)
	if err != nil {
		return err
	}

	key, err := store.PutModel(model)
	if err != nil {
		_ = act.Exit()
		return err
	}

	got, err := resolveInChild(key)
	if err != nil {
		_ = act.Exit()
		return err
	}
	if got != want {
		_ = act.Exit()
		return fmt.Errorf("selftest: child checksum %s, want %s", got, want)
	}
	zlog.Info().Str("checksum", got).Msg("child resolved the model")

	if err := act.Exit(); err != nil {
		return err
	}

	// after shutdown the key must be dead for shared-memory keys
	if _, ok := key.(sharing.ShareKey); ok {
		client, err := sharing.ClientFor(key)
		if err != nil {
			return err
		}
		if _, err := client.GetModel(key); !sharing.IsNotFound(err) {
			return fmt.Errorf("selftest: expected not-found after shutdown, got %v", err)
		}
		zlog.Info().Msg("segments unlinked after shutdown")
	}

	fmt.Println("selftest passed")
	return nil
}

// resolveInChild spawns `modelshare resolve` with the gob-encoded key on
// stdin and returns the checksum it reports.
func resolveInChild(key any) (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	var in bytes.Buffer
	if err := gob.NewEncoder(&in).Encode(&key); err != nil {
		return "", err
	}

	child := exec.Command(exe, "resolve")
	child.Stdin = &in
	child.Stderr = os.Stderr
	out, err := child.StdoutPipe()
	if err != nil {
		return "", err
	}
	if err := child.Start(); err != nil {
		return "", err
	}
	var checksum string
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		if v, ok := strings.CutPrefix(sc.Text(), "sha256="); ok {
			checksum = v
		}
	}
	if err := child.Wait(); err != nil {
		return "", fmt.Errorf("child resolve failed: %w", err)
	}
	if checksum == "" {
		return "", fmt.Errorf("child reported no checksum")
	}
	return checksum, nil
}

// makeTestModel builds a deterministic model from the selftest seed branch.
func makeTestModel(items int) *types.ItemBias {
	seq, _ := rng.Derive("selftest")
	r := seq.RNG()
	names := make([]string, items)
	offsets := make([]float64, items)
	for i := range names {
		names[i] = fmt.Sprintf("item-%06d", i)
		offsets[i] = r.NormFloat64()
	}
	b, _ := types.NewItemBias(3.5, names, offsets)
	return b
}

// modelChecksum hashes the model parameters that travel out of band.
func modelChecksum(b *types.ItemBias) string {
	h := sha256.New()
	var w [8]byte
	binary.LittleEndian.PutUint64(w[:], math.Float64bits(b.Mean))
	h.Write(w[:])
	for _, o := range b.Offsets {
		binary.LittleEndian.PutUint64(w[:], math.Float64bits(o))
		h.Write(w[:])
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
