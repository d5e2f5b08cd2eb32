package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Bidon15/lottoctl/internal/deploy"
	"github.com/Bidon15/lottoctl/internal/preflight"
)

var (
	deployTags          []string
	deployReset         bool
	deploySkipPreflight bool
	deployTimeout       time.Duration
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the lottery (and mocks on development networks)",
	Long: `Run the deployment steps against the selected network.

On development networks the VRF coordinator mock is deployed first and a
funded subscription is created for the lottery. On live networks the
coordinator and subscription come from the network table, and the lottery is
verified on the explorer when ETHERSCAN_API_KEY is set.

Examples:
  lottoctl deploy --network hardhat
  lottoctl deploy --network sepolia --tags lottery
  lottoctl deploy --reset`,
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().StringSliceVar(&deployTags, "tags", nil, "only run steps with these tags (all, mocks, lottery)")
	deployCmd.Flags().BoolVar(&deployReset, "reset", false, "redeploy even when a matching deployment exists")
	deployCmd.Flags().BoolVar(&deploySkipPreflight, "skip-preflight", false, "skip the RPC, chain id and balance checks")
	deployCmd.Flags().DurationVar(&deployTimeout, "timeout", 30*time.Minute, "overall deployment timeout")
	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), deployTimeout)
	defer cancel()

	if !deploySkipPreflight {
		if err := runPreflight(ctx); err != nil {
			return err
		}
	}

	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	d := s.deployer()
	d.Reset = deployReset
	env := &deploy.Env{
		Network:  s.network,
		Accounts: s.accounts,
		Backend:  s.client,
		Deployer: d,
		Verifier: s.verifier(),
		Logger:   s.logger,
	}

	results, err := deploy.Run(ctx, env, deploy.DefaultSteps(), deployTags...)
	if jsonOut {
		if printErr := printJSON(map[string]interface{}{"network": s.network.Name, "steps": results}); printErr != nil {
			return printErr
		}
		return err
	}

	w := newTable()
	printTableHeader(w, "STEP", "STATUS", "DURATION")
	for _, r := range results {
		status := colorGreen("done")
		if r.Skipped {
			status = colorYellow("skipped")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, status, r.Duration.Round(time.Millisecond))
	}
	if flushErr := w.Flush(); flushErr != nil {
		return flushErr
	}
	if err != nil {
		return err
	}

	names, err := s.registry.Names()
	if err != nil {
		return err
	}
	fmt.Println()
	for _, name := range names {
		rec, err := s.registry.Get(name)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s deployed at %s\n", colorGreen("✓"), name, rec.Address.Hex())
	}
	return nil
}

// runPreflight checks the node and deployer before anything is sent.
func runPreflight(ctx context.Context) error {
	n, err := getNetwork()
	if err != nil {
		return err
	}
	url, err := getRPCURL(n)
	if err != nil {
		return err
	}
	set, err := getAccounts(n)
	if err != nil {
		return err
	}
	deployer, err := set.Deployer()
	if err != nil {
		return err
	}

	report, err := preflight.NewChecker().RunChecks(ctx, &preflight.Request{
		Network:  n,
		RPCURL:   url,
		Deployer: deployer.Address(),
	})
	if err != nil {
		return err
	}
	if report.OK {
		return nil
	}

	if jsonOut {
		_ = printJSON(report)
	} else {
		fmt.Println(colorBold("Pre-flight checks failed:"))
		for _, check := range report.Checks {
			fmt.Printf("  %s %s: %s\n", passFail(check.Passed), check.Name, check.Message)
		}
	}
	return fmt.Errorf("pre-flight checks failed for %s (%d of %d)", n.Name, len(report.Failed()), len(report.Checks))
}
