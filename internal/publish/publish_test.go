package publish

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/gazetrace/internal/dispatch"
	"github.com/fakeyudi/gazetrace/internal/protocol"
)

type msg struct {
	subject string
	data    []byte
}

type fakeConn struct {
	mu      sync.Mutex
	msgs    []msg
	fail    error
	flushed bool
	closed  bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.msgs = append(c.msgs, msg{subject, data})
	return nil
}

func (c *fakeConn) Flush() error { c.flushed = true; return nil }
func (c *fakeConn) Close()       { c.closed = true }

func TestListenerPublishesUpdates(t *testing.T) {
	conn := &fakeConn{}
	p := New(conn, "", nil)
	assert.Equal(t, DefaultSubject, p.Subject())

	p.Listener()(dispatch.Update{Seq: 3, Timestamp: 1.5, Hit: true, Word: "main", Token: "main", TokenType: "Ident"})

	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "gazetrace.gaze", conn.msgs[0].subject)
	var got dispatch.Update
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &got))
	assert.Equal(t, uint64(3), got.Seq)
	assert.Equal(t, "Ident", got.TokenType)
}

func TestListenerSwallowsErrors(t *testing.T) {
	conn := &fakeConn{fail: errors.New("nats: connection closed")}
	p := New(conn, "lab.gaze", nil)
	assert.NotPanics(t, func() { p.Listener()(dispatch.Update{Seq: 1}) })
}

func TestStatusListener(t *testing.T) {
	conn := &fakeConn{}
	p := New(conn, "lab.gaze", nil)
	p.StatusListener()(protocol.Event{Kind: protocol.KindError, ErrorType: "no_device", Message: "not found"})

	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "lab.gaze.status", conn.msgs[0].subject)
	assert.JSONEq(t, `{"kind":"error","error_type":"no_device","message":"not found"}`, string(conn.msgs[0].data))
}

func TestCloseFlushes(t *testing.T) {
	conn := &fakeConn{}
	New(conn, "", nil).Close()
	assert.True(t, conn.flushed)
	assert.True(t, conn.closed)
}
