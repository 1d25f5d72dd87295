// Command modelrelay fronts the bounded-context request executor and the
// deterministic verification routines: verbatim-extraction checking,
// label-sequence validation, token accounting and model execution.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/curationsuite/modelrelay/internal/config"
	"github.com/curationsuite/modelrelay/internal/executor"
	"github.com/curationsuite/modelrelay/internal/llm"
	"github.com/curationsuite/modelrelay/internal/logger"
	"github.com/curationsuite/modelrelay/internal/verify"
)

var logLevel string

func main() {
	rootCmd := &cobra.Command{
		Use:   "modelrelay",
		Short: "Verification and token-accounting utilities for model output",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logLevel != "" {
				logger.Global().SetLevel(logger.ParseLevel(logLevel))
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, none)")

	rootCmd.AddCommand(verbatimCmd(), sequenceCmd(), tokensCmd(), executeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func verbatimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verbatim <extracted-file> <original-file>",
		Short: "Check that an extracted text is a verbatim substring of the original",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			extracted, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			original, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}

			result := verify.Verbatim(string(extracted), string(original))
			return printJSON(cmd, result)
		},
	}
}

func sequenceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sequence <label>...",
		Short: "Validate a panel label sequence and propose a gap-free repair",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd, verify.Sequence(args))
		},
	}
}

func tokensCmd() *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "tokens <file>",
		Short: "Estimate the token cost of a file for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			acct := llm.NewAccountant()
			count := acct.CountTokens(string(data), model)
			limit := llm.NewRegistry(nil).LimitFor(model)
			fmt.Fprintf(cmd.OutOrStdout(), "%d tokens (%s limit: %d)\n", count, strings.TrimSpace(model), limit)
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "gpt-4o", "model id used for tokenizer selection and limits")
	return cmd
}

func executeCmd() *cobra.Command {
	var configPath string
	var shapeName string
	var system string

	cmd := &cobra.Command{
		Use:   "execute <prompt-file>",
		Short: "Send a prompt through the escalation ladder and print the merged result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				cfg, err = config.Load(configPath)
				if err != nil {
					return err
				}
			}
			if cfg.LogPath != "" {
				if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
					return err
				}
			}

			prompt, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			shape, err := parseShape(shapeName)
			if err != nil {
				return err
			}

			service, err := llm.NewOpenAIService(os.Getenv("OPENAI_API_KEY"))
			if err != nil {
				return err
			}
			exec, err := executor.NewFromConfig(cfg, service, nil)
			if err != nil {
				return err
			}

			var conv llm.Conversation
			if system != "" {
				conv = append(conv, &llm.Message{Role: llm.RoleSystem, Content: system})
			}
			conv = append(conv, &llm.Message{Role: llm.RoleUser, Content: string(prompt)})

			result, err := exec.Execute(cmd.Context(), executor.NewRequest(cfg, conv, shape))
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a JSON config file")
	cmd.Flags().StringVar(&shapeName, "shape", "raw", "response shape (raw, list, map, assigned_files)")
	cmd.Flags().StringVar(&system, "system", "", "optional system message")
	return cmd
}

func parseShape(name string) (llm.ResponseShape, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "raw", "":
		return llm.ShapeRaw, nil
	case "list":
		return llm.ShapeList, nil
	case "map":
		return llm.ShapeMap, nil
	case "assigned_files":
		return llm.ShapeAssignedFiles, nil
	default:
		return llm.ShapeRaw, fmt.Errorf("unknown response shape %q", name)
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
