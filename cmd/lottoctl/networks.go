package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Bidon15/lottoctl/internal/networks"
)

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "Show the network configuration table",
}

var networksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured networks",
	RunE:  runNetworksList,
}

var networksShowCmd = &cobra.Command{
	Use:   "show <name|chain-id>",
	Short: "Show one network",
	Args:  cobra.ExactArgs(1),
	RunE:  runNetworksShow,
}

func init() {
	networksCmd.AddCommand(networksListCmd)
	networksCmd.AddCommand(networksShowCmd)
	rootCmd.AddCommand(networksCmd)
}

func networkKind(n *networks.Network) string {
	if n.IsDevelopment() {
		return "development"
	}
	return "live"
}

func runNetworksList(cmd *cobra.Command, args []string) error {
	table, err := loadNetworks()
	if err != nil {
		return err
	}
	list := table.List()

	if jsonOut {
		return printJSON(list)
	}

	w := newTable()
	printTableHeader(w, "CHAIN ID", "NAME", "KIND", "ENTRANCE FEE", "INTERVAL")
	for _, n := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s ETH\t%ds\n", n.ChainID, n.Name, networkKind(n), n.EntranceFee, n.Interval)
	}
	return w.Flush()
}

func runNetworksShow(cmd *cobra.Command, args []string) error {
	table, err := loadNetworks()
	if err != nil {
		return err
	}
	n, err := table.Resolve(args[0])
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(n)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Name:               %s\n", n.Name)
	fmt.Fprintf(out, "Chain ID:           %d\n", n.ChainID)
	fmt.Fprintf(out, "Kind:               %s\n", networkKind(n))
	fmt.Fprintf(out, "Entrance Fee:       %s ETH\n", n.EntranceFee)
	fmt.Fprintf(out, "Key Hash:           %s\n", n.KeyHash)
	fmt.Fprintf(out, "Callback Gas Limit: %d\n", n.CallbackGasLimit)
	fmt.Fprintf(out, "Interval:           %ds\n", n.Interval)
	fmt.Fprintf(out, "Confirmations:      %d\n", n.Confirmations())
	if !n.IsDevelopment() {
		fmt.Fprintf(out, "VRF Coordinator:    %s\n", n.VRFCoordinatorV2)
		fmt.Fprintf(out, "Subscription ID:    %s\n", strconv.FormatUint(n.SubscriptionID, 10))
	}
	if err := n.Validate(); err != nil {
		fmt.Fprintf(out, "%s %v\n", colorYellow("⚠"), err)
	}
	return nil
}
