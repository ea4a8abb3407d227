package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	Version = "0.3.1"
)

var (
	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "conveyor",
		Short: "archetype ECS storage toolkit",
		Long: fmt.Sprintf(`conveyor (v%s)

An archetype-based Entity-Component-System storage runtime.
The CLI bundles a stress/benchmark harness for exercising chunk
iteration, belt combos, and deferred structural operations.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of conveyor",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("conveyor v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(stressCmd)
}

// initConfig loads env files and wires environment variables into viper. The
// format is CONVEYOR_<flag> (e.g. CONVEYOR_SUBJECTS=50000).
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("conveyor")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
