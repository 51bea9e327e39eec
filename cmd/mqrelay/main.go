package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	brokerAddr string
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "mqrelay",
		Short: "mqrelay - fault-tolerant MQTT message relay",
		Long:  `mqrelay relays IoT readings from an ingress topic to a downstream receiver topic, tolerating downstream failures, pipeline faults, and coordinator-node failures.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&brokerAddr, "broker", "", "MQTT broker address (overrides config)")

	// Add subcommands
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(receiveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
