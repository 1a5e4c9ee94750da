package realtime

import (
	"Realty/internal/pkg/security"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(h *Hub, buffer int) *Client {
	c := NewClient(h, nil, security.NewVisitorSession(), buffer)
	h.Register(c)
	return c
}

func TestHub_DeliverToGroupOnly(t *testing.T) {
	h := NewHub()
	a := newTestClient(h, 4)
	b := newTestClient(h, 4)
	h.Join(a, "thread:th_1")
	h.Join(b, "thread:th_2")

	n := h.Deliver("thread:th_1", []byte(`{"event":"message"}`))
	assert.Equal(t, 1, n)
	assert.Len(t, a.send, 1)
	assert.Len(t, b.send, 0)
}

func TestHub_JoinIsIdempotent(t *testing.T) {
	h := NewHub()
	c := newTestClient(h, 4)
	h.Join(c, "admin")
	h.Join(c, "admin")

	assert.Equal(t, 1, h.GroupSize("admin"))
	assert.Equal(t, 1, h.Deliver("admin", []byte("x")))
}

func TestHub_JoinIgnoresUnregistered(t *testing.T) {
	h := NewHub()
	c := NewClient(h, nil, security.NewVisitorSession(), 4)
	h.Join(c, "admin")
	assert.Equal(t, 0, h.GroupSize("admin"))
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	h := NewHub()
	slow := newTestClient(h, 1)
	fast := newTestClient(h, 8)
	h.Join(slow, "admin")
	h.Join(fast, "admin")

	assert.Equal(t, 2, h.Deliver("admin", []byte("1")))
	assert.Equal(t, 1, h.Deliver("admin", []byte("2")))

	assert.Equal(t, 1, h.Count())
	assert.Equal(t, 1, h.GroupSize("admin"))
	assert.Len(t, fast.send, 2)

	// 被踢掉的连接发送队列已关闭
	<-slow.send
	_, ok := <-slow.send
	assert.False(t, ok)
}

func TestHub_UnregisterLeavesAllGroups(t *testing.T) {
	h := NewHub()
	c := newTestClient(h, 4)
	h.Join(c, "admin")
	h.Join(c, "thread:th_1")

	h.Unregister(c)
	h.Unregister(c)

	assert.Equal(t, 0, h.Count())
	assert.Equal(t, 0, h.GroupSize("admin"))
	assert.Equal(t, 0, h.GroupSize("thread:th_1"))
	assert.False(t, c.Send("ack", nil))
}

func TestHub_Leave(t *testing.T) {
	h := NewHub()
	c := newTestClient(h, 4)
	h.Join(c, "thread:th_1")
	h.Leave(c, "thread:th_1")

	assert.Equal(t, 0, h.Deliver("thread:th_1", []byte("x")))
	assert.Equal(t, 1, h.Count())
}

func TestHub_Close(t *testing.T) {
	h := NewHub()
	clients := []*Client{newTestClient(h, 1), newTestClient(h, 1)}
	h.Close()

	require.Equal(t, 0, h.Count())
	for _, c := range clients {
		_, ok := <-c.send
		assert.False(t, ok)
	}
}

func TestEncodeFrame(t *testing.T) {
	frame, err := EncodeFrame("ack", &AckPayload{Ack: 7, OK: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"ack","data":{"ack":7,"ok":true}}`, string(frame))
}
