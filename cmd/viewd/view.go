package main

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weisyn/viewd/internal/config"
	"github.com/weisyn/viewd/internal/domain"
)

var viewFlags struct {
	argsHex string
}

var viewCmd = &cobra.Command{
	Use:   "view <contractId> <method>",
	Short: "Run a single view call against the configured store and print its result",
	Args:  cobra.ExactArgs(2),
	RunE:  runView,
}

func init() {
	viewCmd.Flags().StringVar(&viewFlags.argsHex, "args-hex", "", "method input argument bytes, hex-encoded")
}

func runView(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	contractID, method := domain.ContractID(args[0]), args[1]

	var input []byte
	if viewFlags.argsHex != "" {
		decoded, err := hex.DecodeString(viewFlags.argsHex)
		if err != nil {
			return fmt.Errorf("viewd: --args-hex: %w", err)
		}
		input = decoded
	}

	opts, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	application, err := buildApp(ctx, opts)
	if err != nil {
		return err
	}
	defer application.close(context.Background())

	result, err := application.coordinator.View(ctx, contractID, method, input)
	if err != nil {
		return err
	}

	fmt.Printf("height: %d\n", result.Height)
	fmt.Printf("result (base64): %s\n", base64.StdEncoding.EncodeToString(result.ReturnBytes))
	for _, line := range result.Logs {
		fmt.Printf("log: %s\n", line)
	}
	return nil
}
