package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Bidon15/lottoctl/internal/chain"
	"github.com/Bidon15/lottoctl/internal/contracts/vrfmock"
	"github.com/Bidon15/lottoctl/internal/deploy"
	"github.com/Bidon15/lottoctl/internal/suite"
)

var (
	checkFilter        string
	checkWinnerTimeout time.Duration
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the lottery's behavioural checks",
}

var checkUnitCmd = &cobra.Command{
	Use:   "unit",
	Short: "Deploy fresh contracts on a dev node and run the unit checks",
	Long: `Redeploy the mock coordinator and the lottery on the selected development
network, then run every unit check against them. Each check starts from the
same chain state.

Examples:
  lottoctl check unit
  lottoctl check unit --run checkUpkeep`,
	RunE: runCheckUnit,
}

var checkStagingCmd = &cobra.Command{
	Use:   "staging",
	Short: "Run the staging check against the deployed lottery on a live network",
	Long: `Enter the lottery deployed on a live network and wait for the Chainlink
keepers and VRF to pick a winner. The deployer must be the only entrant and
the lottery must be registered with an upkeep.`,
	RunE: runCheckStaging,
}

func init() {
	checkCmd.PersistentFlags().StringVar(&checkFilter, "run", "", "only run checks whose name contains this text")
	checkStagingCmd.Flags().DurationVar(&checkWinnerTimeout, "timeout", suite.DefaultWinnerTimeout, "how long to wait for WinnerPicked")

	checkCmd.AddCommand(checkUnitCmd)
	checkCmd.AddCommand(checkStagingCmd)
	rootCmd.AddCommand(checkCmd)
}

func runCheckUnit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	if !s.network.IsDevelopment() {
		return fmt.Errorf("%w: %s is live, use check staging", suite.ErrWrongNetwork, s.network.Name)
	}

	d := s.deployer()
	d.Reset = true
	if _, err := deploy.Run(ctx, &deploy.Env{
		Network:  s.network,
		Accounts: s.accounts,
		Backend:  s.client,
		Deployer: d,
		Logger:   s.logger,
	}, deploy.DefaultSteps()); err != nil {
		return err
	}

	mockRec, err := s.registry.Get(vrfmock.ContractName)
	if err != nil {
		return err
	}
	coordinator, err := vrfmock.New(mockRec.Address, s.client, chain.WithLogger(s.logger))
	if err != nil {
		return err
	}
	l, err := s.lottery("")
	if err != nil {
		return err
	}

	report, err := suite.RunUnit(ctx, &suite.Env{
		Network:     s.network,
		Lottery:     l,
		Chain:       s.client,
		Accounts:    s.accounts,
		Coordinator: coordinator,
		Node:        s.client.DevNode(),
		Logger:      s.logger,
	}, checkFilter)
	return printReport(report, err)
}

func runCheckStaging(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	l, err := s.lottery("")
	if err != nil {
		return err
	}

	report, err := suite.RunStaging(ctx, &suite.Env{
		Network:       s.network,
		Lottery:       l,
		Chain:         s.client,
		Accounts:      s.accounts,
		WinnerTimeout: checkWinnerTimeout,
		Logger:        s.logger,
	}, checkFilter)
	return printReport(report, err)
}

// printReport renders a suite report and turns failures into an error.
func printReport(report *suite.Report, runErr error) error {
	if report == nil {
		return runErr
	}

	if jsonOut {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		fmt.Printf("%s checks on %s\n\n", report.Suite, report.Network)
		w := newTable()
		printTableHeader(w, "", "CHECK", "DURATION")
		for _, r := range report.Results {
			fmt.Fprintf(w, "%s\t%s\t%s\n", passFail(r.Passed), r.Name, r.Duration.Round(time.Millisecond))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		for _, r := range report.Results {
			if !r.Passed {
				fmt.Printf("\n%s %s\n  %s\n", colorRed("FAIL"), r.Name, r.Error)
			}
		}
		fmt.Printf("\n%d passed, %d failed\n", report.Passed, report.Failed)
	}

	if runErr != nil {
		return runErr
	}
	if !report.OK() {
		return fmt.Errorf("%d of %d %s checks failed", report.Failed, len(report.Results), report.Suite)
	}
	return nil
}
