package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/de-monkey-v/hyper-team-sub000/internal/cmd/config"
	"github.com/de-monkey-v/hyper-team-sub000/internal/config"
	"github.com/de-monkey-v/hyper-team-sub000/internal/process"
)

// Version is set at build time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "hyperteam",
	Short: "Coordinate teams of agent members",
	Long: `hyperteam runs a team lead and worker members, each in its own pane,
that talk through file-based inboxes and share a dependency-aware task graph.

The lead spawns members, hands out tasks, and shuts members down through a
request/response handshake so no member is killed mid-work.`,
	Version:      Version,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/hyperteam/config.yaml)")
	rootCmd.PersistentFlags().String("base-dir", "", "workspace root (default ~/.hyperteam)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("paths.base_dir", rootCmd.PersistentFlags().Lookup("base-dir"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	configcmd.Register(rootCmd)
}

func initConfig() {
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("HYPERTEAM")
	// HYPERTEAM_LIFECYCLE_SHUTDOWN_WAIT_SECONDS for lifecycle.shutdown_wait_seconds
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// Member panes inherit the lead's workspace through HYPERTEAM_BASE_DIR.
	_ = viper.BindEnv("paths.base_dir", "HYPERTEAM_PATHS_BASE_DIR", process.EnvBaseDir)

	_ = viper.ReadInConfig()
}
