// Package cli provides the command-line interface for Wisp
package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/wisp-engine/wisp/pkg/config"
	"github.com/wisp-engine/wisp/pkg/logger"
)

var (
	cfgFile     string
	projectRoot string
	verbosity   string
	version     string

	console = logger.NewConsoleLogger()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "wisp",
	Short: "Frame-parallel collision engine",
	Long: `Wisp - a frame-parallel simulation engine

Wisp steps a 2D world on a fixed frame budget, fanning collision detection
out over a worker pool each frame and merging the results back on the
driving thread.`,

	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("wisp v%s\n", version)
			return
		}
		cmd.Help()
	},
}

// Execute runs the CLI
func Execute(v string) error {
	version = v

	// Initialize the root command explicitly (avoiding init())
	initializeRootCommand()

	return rootCmd.Execute()
}

// initializeRootCommand sets up the root command and its flags.
func initializeRootCommand() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: wisp.config.json)")
	rootCmd.PersistentFlags().StringVar(&projectRoot, "root", ".", "project root directory")
	rootCmd.PersistentFlags().StringVarP(&verbosity, "verbosity", "v", "info", "log level (debug, info, warn, error)")

	rootCmd.Flags().Bool("version", false, "Print version information and quit")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(projectRoot)
		viper.SetConfigName("wisp.config")
		viper.SetConfigType("json")

		// Also try YAML
		viper.SetConfigName("wisp.config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("WISP")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbosity == "debug" {
			fmt.Println("Using config file:", viper.ConfigFileUsed())
		}
	}
}

// Helper functions

func printSuccess(message string) { console.Success(message) }
func printError(message string)   { console.Error(message) }
func printInfo(message string)    { console.Info(message) }
func printWarning(message string) { console.Warn(message) }

func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if found, err := config.NewManager().FindConfig(projectRoot); err == nil {
		return found
	}
	return filepath.Join(projectRoot, "wisp.config.json")
}
