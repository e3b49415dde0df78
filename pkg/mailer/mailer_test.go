package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMessage = Message{
	To:        "misha@example.com",
	ToName:    "Misha",
	Subject:   "Confirm your registration",
	PlainText: "hello",
	HTML:      "<p>hello</p>",
}

func TestMessage_Validate(t *testing.T) {
	assert.NoError(t, testMessage.Validate())
	assert.Error(t, Message{Subject: "s"}.Validate())
	assert.Error(t, Message{To: "misha@example.com"}.Validate())
}

func TestDecodeMessage(t *testing.T) {
	raw, err := json.Marshal(testMessage)
	require.NoError(t, err)

	msg, err := DecodeMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, testMessage, msg)

	_, err = DecodeMessage([]byte("{"))
	assert.Error(t, err)

	_, err = DecodeMessage([]byte(`{"subject":"no recipient"}`))
	assert.Error(t, err)
}

type recordingPublisher struct {
	bodies []interface{}
	err    error
}

func (p *recordingPublisher) Publish(body interface{}) error {
	p.bodies = append(p.bodies, body)
	return p.err
}

func TestQueueMailer_Send(t *testing.T) {
	publisher := &recordingPublisher{}
	m := NewQueueMailer(publisher)

	require.NoError(t, m.Send(context.Background(), testMessage))
	require.Len(t, publisher.bodies, 1)
	assert.Equal(t, testMessage, publisher.bodies[0])

	assert.Error(t, m.Send(context.Background(), Message{}))
	assert.Len(t, publisher.bodies, 1, "invalid messages are not queued")

	publisher.err = errors.New("channel closed")
	assert.Error(t, m.Send(context.Background(), testMessage))
}

func TestLogMailer_Send(t *testing.T) {
	assert.NoError(t, LogMailer{}.Send(context.Background(), testMessage))
	assert.Error(t, LogMailer{}.Send(context.Background(), Message{}))
}

func TestSendGridMailer_Send(t *testing.T) {
	var (
		payload map[string]interface{}
		mu      sync.Mutex
		status  atomic.Int32
	)
	status.Store(http.StatusAccepted)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		mu.Lock()
		defer mu.Unlock()
		require.NoError(t, json.Unmarshal(body, &payload))
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	m := NewSendGridMailer("test-key", "noreply@example.com", "Auth Simple Server")
	m.client.BaseURL = srv.URL

	require.NoError(t, m.Send(context.Background(), testMessage))
	mu.Lock()
	from := payload["from"].(map[string]interface{})
	assert.Equal(t, "noreply@example.com", from["email"])
	assert.Equal(t, "Confirm your registration", payload["subject"])
	mu.Unlock()

	status.Store(http.StatusUnauthorized)
	assert.Error(t, m.Send(context.Background(), testMessage))

	assert.Error(t, m.Send(context.Background(), Message{}))
}
