package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sqlpulse/internal/banner"
	"sqlpulse/internal/source"
	"sqlpulse/internal/version"
)

var (
	cfgFile string
	verbose bool

	// Connection flags, shared by monitor, loadgen and check.
	server    string
	database  string
	username  string
	password  string
	queryFile string
)

var rootCmd = &cobra.Command{
	Use:     "sqlpulse",
	Short:   "SQL Server workload monitor and synthetic load generator",
	Version: version.Number,
	Long: `
sqlpulse samples performance counters from a SQL Server instance on a
fixed interval over long runs, checkpoints its progress so an interrupted
run can resume, and ships a synthetic load generator to exercise the
target while monitoring it.`,
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sqlpulse.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.PersistentFlags().StringVar(&server, "server", ".", "SQL Server instance (host[:port] or host\\instance)")
	rootCmd.PersistentFlags().StringVar(&database, "database", "master", "database name")
	rootCmd.PersistentFlags().StringVar(&username, "username", "", "SQL login (empty selects integrated authentication)")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "SQL password")
	rootCmd.PersistentFlags().StringVar(&queryFile, "query-file", "", "external workload query file (default: embedded query)")

	viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	viper.BindPFlag("database", rootCmd.PersistentFlags().Lookup("database"))
	viper.BindPFlag("username", rootCmd.PersistentFlags().Lookup("username"))
	viper.BindPFlag("password", rootCmd.PersistentFlags().Lookup("password"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".sqlpulse")
		}
	}
	viper.SetEnvPrefix("SQLPULSE")
	viper.AutomaticEnv()
	viper.ReadInConfig()
}

func sourceConfig() source.Config {
	return source.Config{
		Server:    viper.GetString("server"),
		Database:  viper.GetString("database"),
		Username:  viper.GetString("username"),
		Password:  viper.GetString("password"),
		QueryFile: queryFile,
	}
}
