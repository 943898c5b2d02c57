package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"resumable-chat/backend/internal/models"
	"resumable-chat/backend/pkg/client"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/datatypes"
)

var (
	sendChatID   string
	sendRetries  int
	chatsLimit   int
	sendPublic   bool
	resumeWaitMS int
)

func init() {
	sendCmd.Flags().StringVar(&sendChatID, "chat", "", "chat ID (a new chat is created when empty)")
	sendCmd.Flags().IntVar(&sendRetries, "retries", 3, "resume attempts after a dropped connection")
	sendCmd.Flags().BoolVar(&sendPublic, "public", false, "create the chat as public")
	resumeCmd.Flags().IntVar(&resumeWaitMS, "wait-ms", 0, "wait before resuming, in milliseconds")
	chatsCmd.Flags().IntVar(&chatsLimit, "limit", 20, "maximum number of chats to list")
}

var sendCmd = &cobra.Command{
	Use:   "send <text>",
	Short: "Send a message and stream the reply",
	Long: `Send a message and print the assistant reply once it is complete.
If the connection drops the reply is resumed.

Examples:
  chatctl send "What is a resumable stream?"
  chatctl send --chat 7c1e... "And how does replay work?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		chatID := sendChatID
		if chatID == "" {
			chatID = uuid.NewString()
		}
		visibility := models.VisibilityPrivate
		if sendPublic {
			visibility = models.VisibilityPublic
		}

		msg := models.Message{
			ID:    uuid.NewString(),
			Role:  models.RoleUser,
			Parts: datatypes.NewJSONSlice([]models.Part{{Type: models.PartText, Text: strings.Join(args, " ")}}),
		}
		done, err := c.Send(cmd.Context(), chatID, msg, client.SendOptions{Visibility: visibility})
		if err != nil {
			return fmt.Errorf("send failed: %w", err)
		}
		for attempt := 0; !done && attempt < sendRetries; attempt++ {
			time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
			if done, err = c.Resume(cmd.Context(), chatID); err != nil {
				return fmt.Errorf("resume failed: %w", err)
			}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "chat %s\n", chatID)
		printMessages(out, c.Store.Messages(chatID))
		if !done {
			return errors.New("reply incomplete, try `chatctl resume " + chatID + "`")
		}
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <chat-id>",
	Short: "Reattach to a chat's latest reply",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if resumeWaitMS > 0 {
			time.Sleep(time.Duration(resumeWaitMS) * time.Millisecond)
		}
		c := newClient()
		if _, err := c.Resume(cmd.Context(), args[0]); err != nil {
			if errors.Is(err, client.ErrNotFound) {
				return fmt.Errorf("chat %s has nothing to resume", args[0])
			}
			return err
		}
		msgs := c.Store.Messages(args[0])
		if len(msgs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "nothing to replay")
			return nil
		}
		printMessages(cmd.OutOrStdout(), msgs)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <chat-id>",
	Short: "Print a chat's messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		msgs, err := newClient().History(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printMessages(cmd.OutOrStdout(), msgs)
		return nil
	},
}

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List recent chats",
	RunE: func(cmd *cobra.Command, _ []string) error {
		page, err := newClient().ListChats(cmd.Context(), chatsLimit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tCREATED")
		for _, ch := range page.Chats {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ch.ID, ch.Title, ch.Status, ch.CreatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}
