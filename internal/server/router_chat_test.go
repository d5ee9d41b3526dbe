package server

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/notehub/internal/chat"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type streamReadResult struct {
	line string
	err  error
}

// awaitStreamEvent reads server-sent events until one of eventType arrives and returns its data line.
func awaitStreamEvent(t *testing.T, reader *bufio.Reader, eventType string) string {
	t.Helper()
	currentEventType := ""
	deadline := time.After(5 * time.Second)
	for {
		resultCh := make(chan streamReadResult, 1)
		go func() {
			line, err := reader.ReadString('\n')
			resultCh <- streamReadResult{line: line, err: err}
		}()
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", eventType)
		case res := <-resultCh:
			if res.err != nil {
				t.Fatalf("failed to read stream: %v", res.err)
			}
			line := strings.TrimSpace(res.line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "event:") {
				currentEventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
				continue
			}
			if strings.HasPrefix(line, "data:") && currentEventType == eventType {
				return strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			}
		}
	}
}

func openStream(t *testing.T, env *testEnvironment, path, token string) *bufio.Reader {
	t.Helper()
	request, err := http.NewRequest(http.MethodGet, env.server.URL+path+"?access_token="+token, http.NoBody)
	if err != nil {
		t.Fatalf("failed to construct stream request: %v", err)
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	t.Cleanup(func() {
		_ = response.Body.Close()
	})
	if response.StatusCode != http.StatusOK {
		t.Fatalf("unexpected stream status: %d", response.StatusCode)
	}
	if contentType := response.Header.Get("Content-Type"); !strings.HasPrefix(contentType, "text/event-stream") {
		t.Fatalf("unexpected content type %q", contentType)
	}
	return bufio.NewReader(response.Body)
}

func TestGroupStreamEmitsChatMessages(t *testing.T) {
	env := newTestEnvironment(t)
	reader := openStream(t, env, "/chat/group/stream", env.studentToken)

	recorder := env.do(t, http.MethodPost, "/chat/group/messages", env.studentToken, map[string]string{"content": "  hello class  "})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("unexpected send status %d: %s", recorder.Code, recorder.Body.String())
	}

	data := awaitStreamEvent(t, reader, chat.EventChatMessage)
	var message chat.GroupMessage
	if err := json.Unmarshal([]byte(data), &message); err != nil {
		t.Fatalf("failed to decode event payload: %v", err)
	}
	if message.Content != "hello class" || message.Organization != env.organization.ID.Hex() {
		t.Fatalf("unexpected message %#v", message)
	}

	history := env.do(t, http.MethodGet, "/chat/group/messages", env.studentToken, nil)
	var payload struct {
		Messages []chat.GroupMessage `json:"messages"`
	}
	decodeBody(t, history, &payload)
	if len(payload.Messages) != 1 || payload.Messages[0].MessageID != message.MessageID {
		t.Fatalf("unexpected history %#v", payload.Messages)
	}
}

func TestGroupStreamSendsHeartbeats(t *testing.T) {
	env := newTestEnvironment(t)
	reader := openStream(t, env, "/chat/group/stream", env.studentToken)

	data := awaitStreamEvent(t, reader, chat.EventHeartbeat)
	if !strings.Contains(data, "timestamp") {
		t.Fatalf("unexpected heartbeat payload %q", data)
	}
}

func TestGroupChatRejectsForeignOrganization(t *testing.T) {
	env := newTestEnvironment(t)

	recorder := env.do(t, http.MethodGet, "/chat/group/messages?organization="+primitive.NewObjectID().Hex(), env.studentToken, nil)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected forbidden, got %d", recorder.Code)
	}
	if admin := env.do(t, http.MethodGet, "/chat/group/messages", env.adminToken, nil); admin.Code != http.StatusBadRequest {
		t.Fatalf("expected admins to name an organization, got %d", admin.Code)
	}
}

func TestDirectMessagesRoundTrip(t *testing.T) {
	env := newTestEnvironment(t)
	peerID := env.classmate.ID.Hex()

	contacts := env.do(t, http.MethodGet, "/chat/direct/contacts", env.studentToken, nil)
	var contactPayload struct {
		Contacts []struct {
			ID string `json:"_id"`
		} `json:"contacts"`
	}
	decodeBody(t, contacts, &contactPayload)
	if len(contactPayload.Contacts) != 1 || contactPayload.Contacts[0].ID != peerID {
		t.Fatalf("unexpected contacts %#v", contactPayload.Contacts)
	}

	reader := openStream(t, env, "/chat/direct/"+peerID+"/stream", env.studentToken)
	if recorder := env.do(t, http.MethodPost, "/chat/direct/"+peerID+"/messages", env.studentToken, map[string]string{"text": "hi grace"}); recorder.Code != http.StatusCreated {
		t.Fatalf("unexpected send status %d: %s", recorder.Code, recorder.Body.String())
	}
	data := awaitStreamEvent(t, reader, chat.EventChatMessage)
	if !strings.Contains(data, "hi grace") {
		t.Fatalf("unexpected direct event %q", data)
	}

	history := env.do(t, http.MethodGet, "/chat/direct/"+peerID+"/messages", env.studentToken, nil)
	var payload struct {
		Messages []chat.DirectMessage `json:"messages"`
	}
	decodeBody(t, history, &payload)
	if len(payload.Messages) != 1 || payload.Messages[0].ConversationKey != chat.ConversationKey(env.student.ID.Hex(), peerID) {
		t.Fatalf("unexpected history %#v", payload.Messages)
	}

	if self := env.do(t, http.MethodPost, "/chat/direct/"+env.student.ID.Hex()+"/messages", env.studentToken, map[string]string{"text": "me"}); self.Code != http.StatusBadRequest {
		t.Fatalf("expected messaging yourself to be rejected, got %d", self.Code)
	}
}
