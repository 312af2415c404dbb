package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "contractiq",
	Short: "Contract IQ tools server and command line",
	Long: `Contract IQ drafts contracts with a hosted language model and answers
questions about uploaded contracts through the analysis back end.

Run "contractiq serve" to start the HTTP API, or use the prompt and
generate commands to work from the terminal.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(promptCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(jurisdictionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
