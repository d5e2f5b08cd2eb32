// lottoctl is the command-line interface for the VRF lottery.
//
// Use it to deploy the lottery and its mocks, operate a deployed lottery and
// run the unit and staging checks against a node.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}
