package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long:  `Commands for managing the lottoctl configuration file.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file at ~/.lottoctl.yaml with interactive prompts.`,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

// fileConfig is what config init writes. Private keys are never written;
// they come from PRIVATE_KEY or keystores.
type fileConfig struct {
	Network         string   `yaml:"network"`
	RPCURL          string   `yaml:"rpc_url,omitempty"`
	EtherscanAPIKey string   `yaml:"etherscan_api_key,omitempty"`
	Keystores       []string `yaml:"keystores,omitempty"`
	ArtifactsDir    string   `yaml:"artifacts_dir"`
	DeploymentsDir  string   `yaml:"deployments_dir"`
}

func prompt(in io.Reader, out io.Writer, label, def string) string {
	if def != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	var answer string
	_, _ = fmt.Fscanln(in, &answer)
	if answer == "" {
		return def
	}
	return answer
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	in, out := cmd.InOrStdin(), cmd.OutOrStdout()
	configPath := cfgFile
	if configPath == "" {
		configPath = configFilePath()
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(out, "%s Config file already exists at %s\n", colorYellow("⚠"), configPath)
		if answer := prompt(in, out, "Overwrite? [y/N]", ""); answer != "y" && answer != "Y" {
			fmt.Fprintln(out, "Aborted")
			return nil
		}
	}

	table, err := loadNetworks()
	if err != nil {
		return err
	}
	cfg := fileConfig{
		Network:        prompt(in, out, "Network", defaultNetwork),
		RPCURL:         prompt(in, out, "RPC URL (press Enter to use the network default)", ""),
		ArtifactsDir:   prompt(in, out, "Artifacts directory", defaultArtifactsDir),
		DeploymentsDir: prompt(in, out, "Deployments directory", defaultDeploymentsDir),
	}
	if _, err := table.Resolve(cfg.Network); err != nil {
		return err
	}
	cfg.EtherscanAPIKey = prompt(in, out, "Etherscan API key (optional, press Enter to skip)", "")
	if ks := prompt(in, out, "Keystore file (optional, press Enter to skip)", ""); ks != "" {
		cfg.Keystores = []string{ks}
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	content := append([]byte("# lottoctl configuration\n"), data...)
	if err := os.WriteFile(configPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(out, "%s Config file created at %s\n", colorGreen("✓"), configPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	network := networkName
	if network == "" {
		network = viper.GetString("network")
	}
	url := rpcURL
	if url == "" {
		url = viper.GetString("rpc_url")
	}
	level := logLevel
	if level == "" {
		level = viper.GetString("log_level")
	}
	keys := "(not set)"
	if viper.GetString("private_key") != "" {
		keys = "set"
	}

	if jsonOut {
		return printJSON(map[string]interface{}{
			"network":           network,
			"rpc_url":           url,
			"log_level":         level,
			"networks_file":     viper.GetString("networks_file"),
			"artifacts_dir":     viper.GetString("artifacts_dir"),
			"deployments_dir":   viper.GetString("deployments_dir"),
			"etherscan_api_key": maskAPIKey(getAPIKey()),
			"private_key":       keys,
			"keystores":         viper.GetStringSlice("keystores"),
			"config_file":       viper.ConfigFileUsed(),
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Network:          %s\n", network)
	if url != "" {
		fmt.Fprintf(out, "RPC URL:          %s\n", url)
	} else {
		fmt.Fprintf(out, "RPC URL:          %s\n", colorYellow("(network default)"))
	}
	fmt.Fprintf(out, "Log Level:        %s\n", level)
	fmt.Fprintf(out, "Artifacts:        %s\n", viper.GetString("artifacts_dir"))
	fmt.Fprintf(out, "Deployments:      %s\n", viper.GetString("deployments_dir"))
	fmt.Fprintf(out, "Etherscan Key:    %s\n", maskAPIKey(getAPIKey()))
	fmt.Fprintf(out, "Private Key:      %s\n", keys)
	if nf := viper.GetString("networks_file"); nf != "" {
		fmt.Fprintf(out, "Networks File:    %s\n", nf)
	}
	if configFile := viper.ConfigFileUsed(); configFile != "" {
		fmt.Fprintf(out, "Config File:      %s\n", configFile)
	}
	return nil
}

// maskAPIKey masks the API key for display.
func maskAPIKey(key string) string {
	if key == "" {
		return colorYellow("(not set)")
	}
	if len(key) <= 12 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}
