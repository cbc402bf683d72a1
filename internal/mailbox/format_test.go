package mailbox

import (
	"strings"
	"testing"
	"time"
)

func TestFormatForPrompt_Empty(t *testing.T) {
	if got := FormatForPrompt(nil); got != "" {
		t.Errorf("FormatForPrompt(nil) = %q, want empty", got)
	}
}

func TestFormatForPrompt_GroupsByType(t *testing.T) {
	msgs := []Message{
		{From: "team-lead", Text: "start on auth", Summary: "assignment"},
		{From: "team-lead", Payload: ShutdownRequest{RequestID: "r1", Reason: "wrap up"}},
		{From: "ann", Text: "ping"},
	}

	got := FormatForPrompt(msgs)

	if !strings.HasPrefix(got, "<team-messages>\n") || !strings.HasSuffix(got, "</team-messages>") {
		t.Fatalf("missing envelope: %q", got)
	}
	msgIdx := strings.Index(got, "[MESSAGE]")
	shutIdx := strings.Index(got, "[SHUTDOWN_REQUEST]")
	if msgIdx < 0 || shutIdx < 0 || msgIdx > shutIdx {
		t.Errorf("groups out of order:\n%s", got)
	}
	if strings.Count(got, "[MESSAGE]") != 1 {
		t.Errorf("plain messages should share one group:\n%s", got)
	}
	for _, want := range []string{"Summary: assignment", "request=r1 reason=wrap up", "From: ann"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestFilterMessages(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	msgs := []Message{
		{From: "a", Timestamp: base, Payload: PlainMessage{}},
		{From: "b", Timestamp: base.Add(time.Minute), Payload: IdleNotification{}},
		{From: "a", Timestamp: base.Add(2 * time.Minute), Payload: PlainMessage{}},
		{From: "a", Timestamp: base.Add(3 * time.Minute), Payload: BroadcastMessage{}},
	}

	tests := []struct {
		name string
		opts FilterOptions
		want int
	}{
		{"no filter", FilterOptions{}, 4},
		{"by type", FilterOptions{Types: []PayloadType{TypeMessage}}, 2},
		{"since", FilterOptions{Since: base.Add(time.Minute)}, 2},
		{"from", FilterOptions{From: "b"}, 1},
		{"max keeps newest", FilterOptions{MaxMessages: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterMessages(msgs, tt.opts)
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}

	if got := FilterMessages(msgs, FilterOptions{MaxMessages: 1}); got[0].Type() != TypeBroadcast {
		t.Errorf("MaxMessages kept %v, want newest", got[0].Type())
	}
}
