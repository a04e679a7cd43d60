package main

import (
	"github.com/pairlink/pairlink"
	"github.com/spf13/cobra"
)

var offerCmd = &cobra.Command{
	Use:   "offer",
	Short: "Start a chat and produce the first connection code",
	Run:   offerRun,
}

func init() {
	rootCmd.AddCommand(offerCmd)
}

func offerRun(cmd *cobra.Command, args []string) {
	runChat(pairlink.RoleOfferer)
}
