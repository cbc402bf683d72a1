package mailbox

import (
	"fmt"
	"strings"
	"time"
)

// FormatForPrompt renders messages as a block a member can read from its
// prompt, grouped by payload type in first-seen order.
//
// Returns an empty string if there are no messages.
func FormatForPrompt(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}

	groups := make(map[PayloadType][]Message)
	var order []PayloadType
	for _, msg := range messages {
		t := msg.Type()
		if _, ok := groups[t]; !ok {
			order = append(order, t)
		}
		groups[t] = append(groups[t], msg)
	}

	var b strings.Builder
	b.WriteString("<team-messages>\n")
	for i, t := range order {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%s]\n", strings.ToUpper(string(t)))
		for _, msg := range groups[t] {
			fmt.Fprintf(&b, "  From: %s\n", msg.From)
			if msg.Summary != "" {
				fmt.Fprintf(&b, "  Summary: %s\n", msg.Summary)
			}
			if msg.Text != "" {
				fmt.Fprintf(&b, "  %s\n", msg.Text)
			}
			if detail := payloadDetail(msg.Payload); detail != "" {
				fmt.Fprintf(&b, "  %s\n", detail)
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("</team-messages>")
	return b.String()
}

func payloadDetail(p Payload) string {
	switch p := p.(type) {
	case ShutdownRequest:
		return joinDetail("request="+p.RequestID, p.Reason)
	case ShutdownResponse:
		return joinDetail(fmt.Sprintf("request=%s approve=%t", p.RequestID, p.Approve), p.Reason)
	case IdleNotification:
		if p.TaskID == "" {
			return p.Reason
		}
		return joinDetail("task="+p.TaskID, p.Reason)
	case PlanApprovalRequest:
		return joinDetail("request="+p.RequestID, p.Plan)
	case PlanApprovalResponse:
		return joinDetail(fmt.Sprintf("request=%s approve=%t", p.RequestID, p.Approve), p.Feedback)
	default:
		return ""
	}
}

func joinDetail(head, reason string) string {
	if reason == "" {
		return head
	}
	return head + " reason=" + reason
}

// FilterOptions selects messages for FilterMessages.
type FilterOptions struct {
	Types       []PayloadType // empty = all
	Since       time.Time     // zero = all
	From        string        // empty = all
	MaxMessages int           // 0 = unlimited; keeps the most recent
}

// FilterMessages returns the messages matching opts, preserving order.
func FilterMessages(messages []Message, opts FilterOptions) []Message {
	typeSet := make(map[PayloadType]bool, len(opts.Types))
	for _, t := range opts.Types {
		typeSet[t] = true
	}

	var result []Message
	for _, msg := range messages {
		if len(typeSet) > 0 && !typeSet[msg.Type()] {
			continue
		}
		if !opts.Since.IsZero() && !msg.Timestamp.After(opts.Since) {
			continue
		}
		if opts.From != "" && msg.From != opts.From {
			continue
		}
		result = append(result, msg)
	}

	if opts.MaxMessages > 0 && len(result) > opts.MaxMessages {
		result = result[len(result)-opts.MaxMessages:]
	}
	return result
}
