package main

import (
	"os"

	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {

	var listenAddr string

	// rootCmd represents the base command when called without any subcommands
	var rootCmd = &cobra.Command{
		Use: "quickbooks-connector",
	}

	var apiServerCmd = &cobra.Command{
		Use:   "api_server",
		Short: "Connection management API, webhook receiver and refresh scheduler",
		Run: func(cmd *cobra.Command, args []string) {
			startApiServer(listenAddr)
		},
	}

	var syncWorkerCmd = &cobra.Command{
		Use:   "sync_worker",
		Short: "Kafka consumer that executes queued synchronization jobs",
		Run: func(cmd *cobra.Command, args []string) {
			startSyncWorker()
		},
	}

	rootCmd.AddCommand(apiServerCmd)
	apiServerCmd.Flags().StringVarP(&listenAddr, "listen-addr", "l", ":8080", "Hostname:port")

	rootCmd.AddCommand(syncWorkerCmd)

	return rootCmd
}

func main() {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
