package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&GroupMessage{}, &DirectMessage{}); err != nil {
		t.Fatalf("failed to migrate chat schema: %v", err)
	}
	return db
}

func TestConversationKeyIsSymmetric(t *testing.T) {
	if ConversationKey("b", "a") != ConversationKey("a", "b") {
		t.Fatalf("expected symmetric key")
	}
	if ConversationKey(" 65f0 ", "65a1") != "65a1_65f0" {
		t.Fatalf("unexpected key %q", ConversationKey(" 65f0 ", "65a1"))
	}
}

func TestGormStoreOrdersGroupMessagesAscending(t *testing.T) {
	store, err := NewGormStore(openTestDatabase(t))
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for index, content := range []string{"second", "first", "third"} {
		offsets := []time.Duration{time.Minute, 0, 2 * time.Minute}
		message := &GroupMessage{
			MessageID:    fmt.Sprintf("m-%d", index),
			Organization: "org-1",
			SenderID:     "u1",
			SenderEmail:  "u1@example.com",
			Content:      content,
			CreatedAt:    base.Add(offsets[index]),
		}
		if err := store.AppendGroup(ctx, message); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	if err := store.AppendGroup(ctx, &GroupMessage{MessageID: "other", Organization: "org-2", SenderID: "u2", SenderEmail: "u2@example.com", Content: "elsewhere", CreatedAt: base}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	messages, err := store.ListGroup(ctx, "org-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected three messages, got %d", len(messages))
	}
	for index, want := range []string{"first", "second", "third"} {
		if messages[index].Content != want {
			t.Fatalf("position %d: expected %q, got %q", index, want, messages[index].Content)
		}
	}
}

func TestGormStoreScopesDirectMessagesByKey(t *testing.T) {
	store, err := NewGormStore(openTestDatabase(t))
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}
	ctx := context.Background()
	now := time.Now().UTC()

	key := ConversationKey("alice", "bob")
	for index, message := range []*DirectMessage{
		{MessageID: "d1", ConversationKey: key, SenderID: "alice", RecipientID: "bob", Text: "hi bob", CreatedAt: now},
		{MessageID: "d2", ConversationKey: key, SenderID: "bob", RecipientID: "alice", Text: "hi alice", CreatedAt: now.Add(time.Second)},
		{MessageID: "d3", ConversationKey: ConversationKey("alice", "carol"), SenderID: "alice", RecipientID: "carol", Text: "hi carol", CreatedAt: now},
	} {
		if err := store.AppendDirect(ctx, message); err != nil {
			t.Fatalf("append %d failed: %v", index, err)
		}
	}

	messages, err := store.ListDirect(ctx, ConversationKey("bob", "alice"))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(messages) != 2 || messages[0].Text != "hi bob" || messages[1].Text != "hi alice" {
		t.Fatalf("unexpected conversation %#v", messages)
	}
}

func TestNewGormStoreRequiresDatabase(t *testing.T) {
	if _, err := NewGormStore(nil); err == nil {
		t.Fatalf("expected error without database")
	}
}
