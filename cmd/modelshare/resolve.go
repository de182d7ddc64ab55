package main

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"modelshare/internal/sharing"
	"modelshare/pkg/types"
)

// buildResolveCmd is the worker side of selftest: it receives a model key on
// stdin, resolves it through a fresh client, and reports what it found.
func buildResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a model key read from stdin (used by selftest)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve()
		},
	}
}

func runResolve() error {
	var key any
	if err := gob.NewDecoder(os.Stdin).Decode(&key); err != nil {
		return fmt.Errorf("decode key from stdin: %w", err)
	}
	client, err := sharing.ClientFor(key)
	if err != nil {
		return err
	}

	model, err := client.GetModel(key)
	if err != nil {
		return err
	}
	bias, ok := model.(*types.ItemBias)
	if !ok {
		return fmt.Errorf("resolved model is %T, expected *types.ItemBias", model)
	}
	zlog.Info().Int("items", len(bias.Items)).Msg("resolved model")

	fmt.Printf("items=%d\n", len(bias.Items))
	fmt.Printf("sha256=%s\n", modelChecksum(bias))
	return nil
}
