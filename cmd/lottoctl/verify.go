package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Bidon15/lottoctl/internal/contracts/lottery"
	"github.com/Bidon15/lottoctl/internal/deploy"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [contract]",
	Short: "Verify a recorded deployment on the block explorer",
	Long: `Submit the source of a recorded deployment to the network's
Etherscan-compatible explorer and wait for the result. The contract defaults
to the lottery.

Requires ETHERSCAN_API_KEY and a live network.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	name := lottery.ContractName
	if len(args) == 1 {
		name = args[0]
	}

	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.network.IsDevelopment() {
		return fmt.Errorf("%s is a development network, nothing to verify", s.network.Name)
	}
	v := s.verifier()
	if v == nil {
		return errors.New("ETHERSCAN_API_KEY is not set")
	}
	rec, err := s.registry.Get(name)
	if err != nil {
		return err
	}

	result, err := deploy.VerifyRecord(ctx, v, s.store, name, rec)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(result)
	}
	fmt.Printf("%s %s at %s: %s\n", colorGreen("✓"), name, rec.Address.Hex(), result.Status)
	if result.Message != "" {
		fmt.Printf("  %s\n", result.Message)
	}
	return nil
}
