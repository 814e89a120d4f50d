package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jrjocham/apihub/cmd/worker"
)

var (
	cfgPath string
	rootCmd = &cobra.Command{
		Use:           "apihub",
		Short:         "WhatsApp to Nomi message hub",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file (optional)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(worker.NewWorkerCmd())
}
