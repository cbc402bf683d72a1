package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/de-monkey-v/hyper-team-sub000/internal/mailbox"
	"github.com/de-monkey-v/hyper-team-sub000/internal/naming"
)

var msgCmd = &cobra.Command{
	Use:   "msg",
	Short: "Send and read inbox messages",
}

var msgSendCmd = &cobra.Command{
	Use:   "send <team> <to> <text>",
	Short: "Send a message to one member",
	Args:  cobra.ExactArgs(3),
	RunE:  withRuntime(runMsgSend),
}

var msgBroadcastCmd = &cobra.Command{
	Use:   "broadcast <team> <text>",
	Short: "Send a message to every other active member",
	Args:  cobra.ExactArgs(2),
	RunE:  withRuntime(runMsgBroadcast),
}

var msgInboxCmd = &cobra.Command{
	Use:   "inbox <team> <member>",
	Short: "Show a member's messages",
	Long: `Show a member's unread messages in arrival order. --all includes
messages already read. Reading does not mark anything read; use 'msg read'.`,
	Args: cobra.ExactArgs(2),
	RunE: withRuntime(runMsgInbox),
}

var msgReadCmd = &cobra.Command{
	Use:   "read <team> <member> [message-id...]",
	Short: "Mark messages read",
	Args:  cobra.MinimumNArgs(2),
	RunE:  withRuntime(runMsgRead),
}

var msgProcessCmd = &cobra.Command{
	Use:   "process <team>",
	Short: "Handle protocol messages waiting in the lead's inbox",
	Long: `Dispatch shutdown responses and idle notifications from the lead's
inbox. Idle notifications naming an in-progress task complete that task.`,
	Args: cobra.ExactArgs(1),
	RunE: withRuntime(runMsgProcess),
}

var (
	msgFrom    string
	msgSummary string

	inboxAll    bool
	inboxFrom   string
	inboxTypes  []string
	inboxSince  string
	inboxLimit  int
	inboxFormat string

	readAll bool
)

func init() {
	rootCmd.AddCommand(msgCmd)
	msgCmd.AddCommand(msgSendCmd, msgBroadcastCmd, msgInboxCmd, msgReadCmd, msgProcessCmd)

	for _, c := range []*cobra.Command{msgSendCmd, msgBroadcastCmd} {
		c.Flags().StringVarP(&msgFrom, "from", "f", naming.LeadName, "sender")
		c.Flags().StringVarP(&msgSummary, "summary", "s", "", "short summary")
	}

	msgInboxCmd.Flags().BoolVarP(&inboxAll, "all", "a", false, "include read messages")
	msgInboxCmd.Flags().StringVar(&inboxFrom, "from", "", "only messages from this member")
	msgInboxCmd.Flags().StringSliceVar(&inboxTypes, "type", nil, "only these payload types (e.g. shutdown_request)")
	msgInboxCmd.Flags().StringVar(&inboxSince, "since", "", "only messages newer than this duration (e.g. 30m)")
	msgInboxCmd.Flags().IntVarP(&inboxLimit, "tail", "n", 0, "show only the most recent N (0 for all)")
	addFormatFlag(msgInboxCmd, &inboxFormat)

	msgReadCmd.Flags().BoolVarP(&readAll, "all", "a", false, "mark every unread message read")
}

func runMsgSend(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
	msg, err := rt.coord.SendMessage(ctx, args[0], msgFrom, args[1], args[2], msgSummary)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Sent %s to %s\n", msg.ID, args[1])
	return nil
}

func runMsgBroadcast(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
	n, err := rt.coord.Broadcast(ctx, args[0], msgFrom, args[1], msgSummary)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Broadcast delivered to %d members\n", n)
	return nil
}

func runMsgInbox(_ context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
	team, name := args[0], args[1]
	if _, err := rt.reg.Member(team, name); err != nil {
		return err
	}

	var msgs []mailbox.Message
	var err error
	if inboxAll {
		msgs, err = rt.mail.All(team, name)
	} else {
		msgs, err = rt.mail.ListUnread(team, name)
	}
	if err != nil {
		return err
	}

	opts := mailbox.FilterOptions{From: inboxFrom, MaxMessages: inboxLimit}
	for _, t := range inboxTypes {
		opts.Types = append(opts.Types, mailbox.PayloadType(t))
	}
	if inboxSince != "" {
		d, err := time.ParseDuration(inboxSince)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		opts.Since = time.Now().Add(-d)
	}
	msgs = mailbox.FilterMessages(msgs, opts)
	if msgs == nil {
		msgs = []mailbox.Message{}
	}

	return render(cmd, inboxFormat, msgs, func(w io.Writer) error {
		if len(msgs) == 0 {
			fmt.Fprintln(w, "No messages.")
			return nil
		}
		for _, m := range msgs {
			printMessage(w, m)
		}
		return nil
	})
}

func printMessage(w io.Writer, m mailbox.Message) {
	mark := "●"
	if m.Read {
		mark = " "
	}
	fmt.Fprintf(w, "%s %s  %s  from %s  [%s]\n", mark, m.Timestamp.Local().Format("15:04:05"), m.ID, m.From, m.Type())
	if m.Summary != "" {
		fmt.Fprintf(w, "    %s\n", m.Summary)
	}
	for _, line := range strings.Split(m.Text, "\n") {
		fmt.Fprintf(w, "    %s\n", line)
	}
}

func runMsgRead(_ context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
	team, name, ids := args[0], args[1], args[2:]
	if readAll {
		n, err := rt.mail.MarkAllRead(team, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Marked %d messages read\n", n)
		return nil
	}
	if len(ids) == 0 {
		return fmt.Errorf("give message IDs or --all")
	}
	if err := rt.mail.MarkRead(team, name, ids...); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Marked %d messages read\n", len(ids))
	return nil
}

func runMsgProcess(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
	n, err := rt.coord.ProcessInbox(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Handled %d protocol messages\n", n)
	return nil
}
