// Command clamma is a minimal demonstration host for the library: it
// loads one checkpoint and vocabulary, starts a single generation
// session, and drains it to standard output.
//
// Grounded on
// _examples/7blacky7-ollama-reverse/runner/llamarunner/server.go's
// Execute() entrypoint shape (slog default logger, flag-driven startup),
// translated from flag to cobra since the teacher's own top-level cmd/
// package (superseded by this one) is built on cobra.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/warmcat/clamma-go/checkpoint"
	"github.com/warmcat/clamma-go/envconfig"
	"github.com/warmcat/clamma-go/model"
	clammaruntime "github.com/warmcat/clamma-go/runtime"
	"github.com/warmcat/clamma-go/session"
	"github.com/warmcat/clamma-go/tokenizer"
	"github.com/warmcat/clamma-go/weights"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clamma",
		Short: "Run a Llama2-family checkpoint interactively",
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		modelPath string
		vocabPath string
		prompt    string
		system    string
		chat      bool
		limit     int
		temp      float32
		topp      float32
		seed      uint64
		cacheMode bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load a checkpoint and run one session to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.SetLogLoggerLevel(envconfig.LogLevel())
			slog.Info("clamma config", "env", envconfig.Values())

			accessMode := weights.Mmap
			if cacheMode {
				accessMode = weights.MallocCache
			}

			ck, err := checkpoint.Load(checkpoint.LoadInfo{
				APIVersion:     checkpoint.APIVersion,
				CheckpointPath: modelPath,
				AccessMode:     accessMode,
				CacheLimit:     envconfig.CacheLimit(),
			})
			if err != nil {
				return fmt.Errorf("loading checkpoint: %w", err)
			}
			defer ck.Close()

			vocab, err := tokenizer.Load(vocabPath, ck.Config.VocabSize)
			if err != nil {
				return fmt.Errorf("loading vocab: %w", err)
			}

			modelType := session.ModelGen
			if chat {
				modelType = session.ModelChat
			}

			numThreads := int(envconfig.NumThreads())
			rt := clammaruntime.New(numThreads, numThreads*4, int(envconfig.MaxSessions()))
			defer rt.Close()

			if err := rt.Models.Register(&model.Model{
				Name:        "default",
				Checkpoint:  ck,
				Vocab:       vocab,
				ModelType:   modelType,
				MaxSessions: int(envconfig.MaxSessions()),
			}); err != nil {
				return err
			}

			_, err = rt.NewSession("default", session.Params{
				System:      system,
				Prompt:      prompt,
				Limit:       limit,
				Temperature: temp,
				TopP:        topp,
				RNGSeed:     seed,
				Issue: func(piece string) bool {
					fmt.Print(piece)
					return true
				},
			})
			if err != nil {
				return fmt.Errorf("starting session: %w", err)
			}

			for rt.StepNext() {
			}
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "path to the checkpoint image")
	cmd.Flags().StringVar(&vocabPath, "vocab", "", "path to the vocabulary file")
	cmd.Flags().StringVar(&prompt, "prompt", "", "user prompt text")
	cmd.Flags().StringVar(&system, "system", "", "optional system prompt text")
	cmd.Flags().BoolVar(&chat, "chat", false, "use the CHAT prompt template instead of GEN")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum tokens to generate (0 = seq_len)")
	cmd.Flags().Float32Var(&temp, "temperature", 0.8, "sampling temperature")
	cmd.Flags().Float32Var(&topp, "topp", 0.9, "nucleus sampling threshold")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "RNG seed (0 = derive from current time)")
	cmd.Flags().BoolVar(&cacheMode, "malloc-cache", false, "use the bounded weight cache instead of mmap")
	cmd.MarkFlagRequired("model")
	cmd.MarkFlagRequired("vocab")

	return cmd
}
