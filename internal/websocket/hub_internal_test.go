package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dom/linklearn/internal/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBareClient(channel Channel, userID, sessionID uuid.UUID) *Client {
	return &Client{
		send:      make(chan []byte, 8),
		userID:    userID,
		channel:   channel,
		sessionID: sessionID,
	}
}

func readFrame(t *testing.T, c *Client) *Message {
	t.Helper()
	select {
	case data := <-c.send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return &msg
	case <-time.After(time.Second):
		t.Fatal("no frame queued")
		return nil
	}
}

func assertNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected frame: %s", data)
	default:
	}
}

func TestDispatch_UnknownMessageType(t *testing.T) {
	hub := NewHub(nil, config.TimerPolicyReject)

	tests := []struct {
		name    string
		channel Channel
		msgType MessageType
	}{
		{"made up kind on session socket", ChannelSession, MessageType("launch_rockets")},
		{"server kind sent by client", ChannelSession, MessageTypeSessionState},
		{"session command on presence socket", ChannelPresence, MessageTypeTimerStart},
		{"chat on presence socket", ChannelPresence, MessageTypeChatMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newBareClient(tt.channel, uuid.New(), uuid.New())
			hub.dispatch(context.Background(), c, &Message{Type: tt.msgType})

			msg := readFrame(t, c)
			assert.Equal(t, MessageTypeError, msg.Type)

			var payload ErrorPayload
			require.NoError(t, json.Unmarshal(msg.Payload, &payload))
			assert.Equal(t, "UNKNOWN_MESSAGE_TYPE", payload.Code)
			assert.Contains(t, payload.Message, string(tt.msgType))
		})
	}
}

func TestDispatch_TablesCoverClientKinds(t *testing.T) {
	for _, kind := range []MessageType{
		MessageTypeTimerStart, MessageTypeTimerStop, MessageTypeEndSession,
		MessageTypeChatMessage, MessageTypeTyping, MessageTypeCodeUpdate,
		MessageTypeWhiteboardUpdate, MessageTypeSignal, MessageTypeGetCredits,
		MessageTypeHeartbeat,
	} {
		assert.Contains(t, sessionHandlers, kind)
	}
	assert.Len(t, presenceHandlers, 2)
}

func TestDecode(t *testing.T) {
	var p ChatPayload
	require.NoError(t, decode(nil, &p))
	require.NoError(t, decode(json.RawMessage(`{"message":"hi"}`), &p))
	assert.Equal(t, "hi", p.Message)
	assert.Error(t, decode(json.RawMessage(`{"message":`), &p))
}

func TestHub_DeliverSuppressesEcho(t *testing.T) {
	hub := NewHub(nil, config.TimerPolicyReject)
	sessionID := uuid.New()
	alice, bob := uuid.New(), uuid.New()

	aliceTab := newBareClient(ChannelSession, alice, sessionID)
	aliceOtherTab := newBareClient(ChannelSession, alice, sessionID)
	bobTab := newBareClient(ChannelSession, bob, sessionID)
	elsewhere := newBareClient(ChannelSession, bob, uuid.New())
	presenceTab := newBareClient(ChannelPresence, bob, uuid.Nil)
	for _, c := range []*Client{aliceTab, aliceOtherTab, bobTab, elsewhere, presenceTab} {
		hub.add(c)
	}
	assert.Equal(t, 3, hub.SessionClientCount(sessionID))

	chat, err := NewMessage(MessageTypeChatMessage, ChatPayload{Message: "hello"})
	require.NoError(t, err)
	hub.Deliver(&Envelope{Scope: ScopeSession, SessionID: sessionID, SenderID: alice, Message: chat})

	assert.Equal(t, MessageTypeChatMessage, readFrame(t, bobTab).Type)
	assertNoFrame(t, aliceTab)
	assertNoFrame(t, aliceOtherTab)
	assertNoFrame(t, elsewhere)
	assertNoFrame(t, presenceTab)

	started, err := NewMessage(MessageTypeTimerStarted, map[string]string{"teacher_id": alice.String()})
	require.NoError(t, err)
	hub.Deliver(&Envelope{Scope: ScopeSession, SessionID: sessionID, SenderID: alice, Echo: true, Message: started})

	for _, c := range []*Client{aliceTab, aliceOtherTab, bobTab} {
		assert.Equal(t, MessageTypeTimerStarted, readFrame(t, c).Type)
	}
	assertNoFrame(t, presenceTab)
}

func TestHub_DeliverPresence(t *testing.T) {
	hub := NewHub(nil, config.TimerPolicyReject)
	watcher := newBareClient(ChannelPresence, uuid.New(), uuid.Nil)
	self := newBareClient(ChannelPresence, uuid.New(), uuid.Nil)
	inSession := newBareClient(ChannelSession, uuid.New(), uuid.New())
	for _, c := range []*Client{watcher, self, inSession} {
		hub.add(c)
	}

	msg, err := NewMessage(MessageTypePresenceUpdate, map[string]string{"status": "online"})
	require.NoError(t, err)
	hub.Deliver(&Envelope{Scope: ScopePresence, SenderID: self.userID, Echo: true, Message: msg})

	assert.Equal(t, MessageTypePresenceUpdate, readFrame(t, watcher).Type)
	assert.Equal(t, MessageTypePresenceUpdate, readFrame(t, self).Type)
	assertNoFrame(t, inSession)
}

func TestHub_RemoveIsIdempotent(t *testing.T) {
	hub := NewHub(nil, config.TimerPolicyReject)
	sessionID := uuid.New()
	c := newBareClient(ChannelSession, uuid.New(), sessionID)
	hub.add(c)

	assert.True(t, hub.remove(c))
	assert.False(t, hub.remove(c))
	assert.Zero(t, hub.SessionClientCount(sessionID))
}

func TestClient_SendAfterCloseDoesNotPanic(t *testing.T) {
	c := newBareClient(ChannelSession, uuid.New(), uuid.New())
	c.Close()
	c.Close()

	assert.NotPanics(t, func() {
		c.sendError("X", "after close")
	})
}

func TestLocalRelay_AttachAndDetach(t *testing.T) {
	relay := NewLocalRelay()
	var got []*Envelope
	env := &Envelope{Scope: ScopePresence}

	require.NoError(t, relay.Publish(context.Background(), env), "publishing with no target is a no-op")

	relay.Attach(func(e *Envelope) { got = append(got, e) })
	require.NoError(t, relay.Publish(context.Background(), env))
	assert.Len(t, got, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = relay.Run(ctx, func(e *Envelope) { got = append(got, e) })
		close(done)
	}()
	cancel()
	<-done

	require.NoError(t, relay.Publish(context.Background(), env))
	assert.Len(t, got, 1, "Run detaches when its context ends")
}

func TestChannelFor(t *testing.T) {
	sessionID := uuid.New()
	assert.Equal(t, "linklearn:presence", channelFor(&Envelope{Scope: ScopePresence}))
	assert.Equal(t, "linklearn:session:"+sessionID.String(), channelFor(&Envelope{Scope: ScopeSession, SessionID: sessionID}))
}
