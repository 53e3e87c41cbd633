package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/secretaria-app/secretaria/internal/command"
	"github.com/secretaria-app/secretaria/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "secretaria",
	Short: "Secretaria - personal assistant backend",
	Long: `Secretaria is a personal assistant backend. It streams chat replies from
MiniMax and Perplexity, keeps conversations with their files, writes Word
documents on request and forwards replies to Telegram contacts.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		if verbose {
			logrus.SetLevel(logrus.TraceLevel)
		}
	},
}

// Build information variables
var (
	// Set by compiler via -ldflags
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"

	configFile string
)

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultConfigFile(), "YAML config file; environment variables override it")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Secretaria\n")
			fmt.Printf("Version:    %s\n", version)
			fmt.Printf("Git Commit: %s\n", gitCommit)
			fmt.Printf("Build Time: %s\n", buildTime)
		},
	}
	rootCmd.AddCommand(versionCmd)

	rootCmd.AddCommand(command.ServeCommand(&configFile, version))
	rootCmd.AddCommand(command.UserCommand(&configFile))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
