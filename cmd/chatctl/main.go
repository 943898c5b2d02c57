// Package main implements chatctl, a command-line client for the chat API.
package main

import (
	"fmt"
	"io"
	"os"

	"resumable-chat/backend/internal/models"
	"resumable-chat/backend/pkg/client"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the API base URL, including the /api/v1 prefix
	serverURL string
	token     string
	version   = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chatctl",
	Short: "CLI for the resumable chat API",
	Long: `chatctl talks to the chat backend: it logs in, sends messages while
following the streamed reply, resumes interrupted replies and prints history.

Most commands need a session token, passed with --token or CHATCTL_TOKEN.`,
	Version:       version,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("CHATCTL_SERVER", "http://localhost:8080/api/v1"), "chat API base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("CHATCTL_TOKEN"), "session token")
	rootCmd.AddCommand(loginCmd, guestCmd, sendCmd, resumeCmd, historyCmd, chatsCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newClient() *client.Client {
	return client.New(serverURL, client.WithToken(token))
}

func printMessages(w io.Writer, msgs []models.Message) {
	for _, m := range msgs {
		fmt.Fprintf(w, "[%s] %s: %s\n", m.ID, m.Role, m.Text())
	}
}
