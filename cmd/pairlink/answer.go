package main

import (
	"github.com/pairlink/pairlink"
	"github.com/spf13/cobra"
)

var answerCmd = &cobra.Command{
	Use:   "answer",
	Short: "Join a chat by answering a peer's connection code",
	Run:   answerRun,
}

func init() {
	rootCmd.AddCommand(answerCmd)
}

func answerRun(cmd *cobra.Command, args []string) {
	runChat(pairlink.RoleAnswerer)
}
