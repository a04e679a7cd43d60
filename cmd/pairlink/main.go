package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "pairlink",
	Short: "\np2p text chat over copy-pasted connection codes\n",
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().String("label", "", "data channel label")
	rootCmd.PersistentFlags().StringSlice("stun", nil, "STUN server URLs (empty for local network)")
	viper.BindPFlag("label", rootCmd.PersistentFlags().Lookup("label"))
	viper.BindPFlag("stun", rootCmd.PersistentFlags().Lookup("stun"))

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func initConfig() {
	viper.SetDefault("label", "pairlink-chat")
	viper.SetEnvPrefix("pairlink")
	viper.AutomaticEnv()

	viper.SetConfigName("pairlink")
	viper.AddConfigPath(".")
	viper.ReadInConfig() // optional config file
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
