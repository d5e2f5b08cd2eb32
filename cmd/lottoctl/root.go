package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Bidon15/lottoctl/internal/accounts"
	"github.com/Bidon15/lottoctl/internal/artifacts"
	"github.com/Bidon15/lottoctl/internal/chain"
	"github.com/Bidon15/lottoctl/internal/contracts/lottery"
	"github.com/Bidon15/lottoctl/internal/deploy"
	"github.com/Bidon15/lottoctl/internal/networks"
	"github.com/Bidon15/lottoctl/internal/verify"
)

const (
	defaultNetwork        = "hardhat"
	defaultDevRPCURL      = "http://127.0.0.1:8545"
	defaultArtifactsDir   = "artifacts"
	defaultDeploymentsDir = "deployments"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Global flags
	cfgFile     string
	networkName string
	rpcURL      string
	logLevel    string
	jsonOut     bool
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "lottoctl",
	Short: "lottoctl - deploy, operate and check the VRF lottery",
	Long: `lottoctl deploys the Chainlink VRF lottery contract, drives it from the
command line and runs its unit and staging checks.

Configuration (in order of priority):
  1. Command-line flags (--network, --rpc-url, --log-level)
  2. Environment variables (LOTTOCTL_NETWORK, LOTTOCTL_RPC_URL, PRIVATE_KEY, ETHERSCAN_API_KEY)
  3. Config file (~/.lottoctl.yaml)

Get started:
  $ lottoctl networks list            # Supported networks
  $ lottoctl deploy --network hardhat  # Deploy mocks and the lottery
  $ lottoctl check unit                # Run the unit checks on a dev node`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "lottoctl version %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.lottoctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&networkName, "network", "", "network name or chain id (or LOTTOCTL_NETWORK)")
	rootCmd.PersistentFlags().StringVar(&rpcURL, "rpc-url", "", "JSON-RPC endpoint (or LOTTOCTL_RPC_URL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (or LOTTOCTL_LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")

	rootCmd.AddCommand(versionCmd)
}

// initConfig initializes viper configuration.
func initConfig() {
	viper.SetDefault("network", defaultNetwork)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("artifacts_dir", defaultArtifactsDir)
	viper.SetDefault("deployments_dir", defaultDeploymentsDir)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".lottoctl")
		}
	}

	viper.SetEnvPrefix("LOTTOCTL")
	viper.AutomaticEnv()
	_ = viper.BindEnv("network", "LOTTOCTL_NETWORK")
	_ = viper.BindEnv("rpc_url", "LOTTOCTL_RPC_URL")
	_ = viper.BindEnv("log_level", "LOTTOCTL_LOG_LEVEL")
	_ = viper.BindEnv("networks_file", "LOTTOCTL_NETWORKS_FILE")
	_ = viper.BindEnv("private_key", "PRIVATE_KEY", "LOTTOCTL_PRIVATE_KEY")
	_ = viper.BindEnv("etherscan_api_key", "ETHERSCAN_API_KEY", "LOTTOCTL_ETHERSCAN_API_KEY")
	_ = viper.BindEnv("keystore_password", "LOTTOCTL_KEYSTORE_PASSWORD")

	_ = viper.ReadInConfig()
}

// newLogger builds the stderr logger for the configured level.
func newLogger() *slog.Logger {
	level := logLevel
	if level == "" {
		level = viper.GetString("log_level")
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// loadNetworks returns the embedded table with networks_file layered on top.
func loadNetworks() (*networks.Table, error) {
	return networks.Load(viper.GetString("networks_file"))
}

// getNetwork resolves the selected network from flags, env, or config.
func getNetwork() (*networks.Network, error) {
	table, err := loadNetworks()
	if err != nil {
		return nil, err
	}
	name := networkName
	if name == "" {
		name = viper.GetString("network")
	}
	return table.Resolve(name)
}

// getRPCURL returns the endpoint for n from flags, env, config or the table.
func getRPCURL(n *networks.Network) (string, error) {
	if rpcURL != "" {
		return rpcURL, nil
	}
	if url := viper.GetString("rpc_url"); url != "" {
		return url, nil
	}
	if n.RPCURL != "" {
		return os.ExpandEnv(n.RPCURL), nil
	}
	if n.IsDevelopment() {
		return defaultDevRPCURL, nil
	}
	return "", fmt.Errorf("RPC URL required for %s. Set via --rpc-url, LOTTOCTL_RPC_URL, or ~/.lottoctl.yaml", n.Name)
}

// getAccounts resolves signing keys; development networks fall back to the
// well-known dev node keys.
func getAccounts(n *networks.Network) (*accounts.Set, error) {
	var keys []string
	if raw := viper.GetString("private_key"); raw != "" {
		keys = strings.Split(raw, ",")
	}
	set, err := accounts.Load(accounts.Source{
		PrivateKeys:      keys,
		Keystores:        viper.GetStringSlice("keystores"),
		KeystorePassword: viper.GetString("keystore_password"),
		Development:      n.IsDevelopment(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w. Set PRIVATE_KEY or keystores in ~/.lottoctl.yaml", err)
	}
	return set, nil
}

// getAPIKey returns the explorer API key from env or config; empty disables
// verification.
func getAPIKey() string {
	return viper.GetString("etherscan_api_key")
}

// session is a connection to the selected network.
type session struct {
	network  *networks.Network
	client   *chain.Client
	accounts *accounts.Set
	registry *deploy.Registry
	store    *artifacts.Store
	logger   *slog.Logger
}

// connect dials the selected network and checks the chain id.
func connect(ctx context.Context) (*session, error) {
	n, err := getNetwork()
	if err != nil {
		return nil, err
	}
	url, err := getRPCURL(n)
	if err != nil {
		return nil, err
	}
	client, err := chain.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	id, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	if !id.IsUint64() || id.Uint64() != n.ChainID {
		client.Close()
		return nil, fmt.Errorf("%s is chain %s, expected %d for %s", url, id, n.ChainID, n.Name)
	}
	set, err := getAccounts(n)
	if err != nil {
		client.Close()
		return nil, err
	}
	return &session{
		network:  n,
		client:   client,
		accounts: set,
		registry: deploy.NewRegistry(viper.GetString("deployments_dir"), n.Name, n.ChainID),
		store:    artifacts.NewStore(viper.GetString("artifacts_dir")),
		logger:   newLogger(),
	}, nil
}

func (s *session) Close() {
	s.client.Close()
}

func (s *session) chainID() *big.Int {
	return new(big.Int).SetUint64(s.network.ChainID)
}

func (s *session) deployer() *deploy.Deployer {
	return deploy.NewDeployer(s.client, s.chainID(), s.store, s.registry, s.logger)
}

// verifier returns the explorer client, or nil when verification is off.
func (s *session) verifier() deploy.Verifier {
	key := getAPIKey()
	if !deploy.VerificationEnabled(s.network, key) {
		return nil
	}
	return verify.NewClient(key, s.network.ChainID,
		verify.WithBaseURL(s.network.ExplorerAPIURL),
		verify.WithLogger(s.logger),
	)
}

// lotteryAddress returns --address when set, else the recorded deployment.
func (s *session) lotteryAddress(flagValue string) (common.Address, error) {
	if flagValue != "" {
		if !common.IsHexAddress(flagValue) {
			return common.Address{}, fmt.Errorf("invalid address %q", flagValue)
		}
		return common.HexToAddress(flagValue), nil
	}
	rec, err := s.registry.Get(lottery.ContractName)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w. Run lottoctl deploy or pass --address", err)
	}
	return rec.Address, nil
}

func (s *session) lottery(flagValue string) (*lottery.Lottery, error) {
	addr, err := s.lotteryAddress(flagValue)
	if err != nil {
		return nil, err
	}
	return lottery.New(addr, s.client,
		chain.WithConfirmations(s.network.Confirmations()),
		chain.WithLogger(s.logger),
	)
}

// configFilePath returns the default config file path.
func configFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lottoctl.yaml"
	}
	return filepath.Join(home, ".lottoctl.yaml")
}

// Output helpers

// printJSON outputs data as formatted JSON.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printError prints an error message.
func printError(err error) {
	writeError(os.Stderr, err)
}

// writeError renders err, showing the explorer's message and result for
// verification failures anywhere in the chain.
func writeError(w io.Writer, err error) {
	var apiErr *verify.APIError
	if errors.As(err, &apiErr) {
		fmt.Fprintf(w, "%s %s\n", colorRed("Error:"), apiErr.Message)
		if apiErr.Result != "" {
			fmt.Fprintf(w, "  Result: %s\n", apiErr.Result)
		}
		return
	}
	fmt.Fprintf(w, "%s %s\n", colorRed("Error:"), err.Error())
}

// newTable creates a new tabwriter for formatted output.
func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

// printTableHeader prints a bold header row.
func printTableHeader(w *tabwriter.Writer, columns ...string) {
	for i, col := range columns {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, colorBold(col))
	}
	fmt.Fprintln(w)
}

// Terminal colors

func colorRed(s string) string {
	if !isTTY() {
		return s
	}
	return "\033[31m" + s + "\033[0m"
}

func colorGreen(s string) string {
	if !isTTY() {
		return s
	}
	return "\033[32m" + s + "\033[0m"
}

func colorYellow(s string) string {
	if !isTTY() {
		return s
	}
	return "\033[33m" + s + "\033[0m"
}

func colorBold(s string) string {
	if !isTTY() {
		return s
	}
	return "\033[1m" + s + "\033[0m"
}

func isTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// passFail renders a check outcome.
func passFail(passed bool) string {
	if passed {
		return colorGreen("✓")
	}
	return colorRed("✗")
}
