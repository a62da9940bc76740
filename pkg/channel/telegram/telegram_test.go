package telegram

import (
	"strings"
	"testing"

	"github.com/mymmrac/telego"

	"dollhouse/pkg/config"
	"dollhouse/pkg/logger"
)

func TestNewAdapterRequiresToken(t *testing.T) {
	if _, err := NewAdapter(config.TelegramConfig{Token: "  "}, nil); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestAllowFromSet(t *testing.T) {
	allowed := allowFromSet([]string{" 123 ", "", "456", "123"})
	if len(allowed) != 2 {
		t.Fatalf("allowFromSet len = %d, want 2", len(allowed))
	}
	if _, ok := allowed["123"]; !ok {
		t.Fatal("allowFromSet missing 123")
	}
	if allowFromSet([]string{" "}) != nil {
		t.Fatal("expected nil set for blank values")
	}
}

func TestSenderAllowed(t *testing.T) {
	adapter := &Adapter{allowFrom: map[string]struct{}{"1": {}}}
	if !adapter.senderAllowed("1") {
		t.Fatal("expected sender 1 to be allowed")
	}
	if adapter.senderAllowed("2") {
		t.Fatal("expected sender 2 to be denied")
	}

	adapter.allowFrom = nil
	if !adapter.senderAllowed("any") {
		t.Fatal("expected sender to be allowed when allowlist empty")
	}
}

func TestToInbound(t *testing.T) {
	adapter := &Adapter{allowFrom: map[string]struct{}{"7": {}}, log: logger.Discard()}

	update := telego.Update{
		UpdateID: 99,
		Message: &telego.Message{
			Text: "  hi room  ",
			From: &telego.User{ID: 7, FirstName: "Ada", Username: "ada_l"},
			Chat: telego.Chat{ID: -100},
		},
	}
	in, ok := adapter.toInbound(update)
	if !ok {
		t.Fatal("expected text message to be bridged")
	}
	if in.Content != "hi room" {
		t.Fatalf("content = %q, want %q", in.Content, "hi room")
	}
	if in.SenderID != "7" || in.SenderName != "Ada" || in.ChatID != "-100" {
		t.Fatalf("inbound = %+v", in)
	}
	if in.Metadata["update_id"] != "99" {
		t.Fatalf("update_id = %q, want 99", in.Metadata["update_id"])
	}

	skipped := []telego.Update{
		{},
		{Message: &telego.Message{Text: "   ", From: &telego.User{ID: 7}}},
		{Message: &telego.Message{Text: "anonymous"}},
		{Message: &telego.Message{Text: "stranger", From: &telego.User{ID: 8}}},
	}
	for i, u := range skipped {
		if _, ok := adapter.toInbound(u); ok {
			t.Fatalf("update %d should be skipped", i)
		}
	}
}

func TestDisplayNameFallsBackToUsername(t *testing.T) {
	if got := displayName(&telego.User{Username: "bo"}); got != "bo" {
		t.Fatalf("displayName = %q, want %q", got, "bo")
	}
}

func TestPreviewText(t *testing.T) {
	short := " hello "
	if got := previewText(short); got != "hello" {
		t.Fatalf("previewText short = %q, want %q", got, "hello")
	}

	long := strings.Repeat("a", messagePreviewLimit+20)
	got := previewText(long)
	if len(got) != messagePreviewLimit+3 {
		t.Fatalf("previewText long len = %d, want %d", len(got), messagePreviewLimit+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("previewText long = %q, want ellipsis suffix", got)
	}
}
