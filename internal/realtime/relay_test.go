package realtime

import (
	"Realty/internal/api/config"
	"Realty/internal/model"
	"Realty/internal/pkg/consts"
	"Realty/internal/pkg/memstore"
	"Realty/internal/pkg/security"
	"Realty/internal/service"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type relayFixture struct {
	relay   *Relay
	hub     *Hub
	threads *memstore.ThreadStore
}

func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()
	hub := NewHub()
	threads := memstore.NewThreadStore()
	svc := service.NewChatService(config.ChatConfig{}, threads, memstore.NewMessageStore(),
		NewLocalBus(hub), memstore.NewDeduper(time.Minute), nil, nil)
	t.Cleanup(svc.Close)
	return &relayFixture{relay: NewRelay(hub, svc, 16), hub: hub, threads: threads}
}

func (f *relayFixture) connect(sess security.Session) *Client {
	c := NewClient(f.hub, nil, sess, 16)
	f.hub.Register(c)
	if sess.IsAdmin() {
		f.hub.Join(c, consts.GroupAdmin)
	}
	return c
}

func (f *relayFixture) emit(c *Client, event string, data string, ack int64) {
	frame := &InboundFrame{Event: event, Data: json.RawMessage(data)}
	if ack > 0 {
		frame.Ack = &ack
	}
	f.relay.Handle(context.Background(), c, frame)
}

type received struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func drain(t *testing.T, c *Client) []received {
	t.Helper()
	var res []received
	for {
		select {
		case raw := <-c.send:
			var r received
			require.NoError(t, json.Unmarshal(raw, &r))
			res = append(res, r)
		default:
			return res
		}
	}
}

func events(frames []received) []string {
	res := make([]string, 0, len(frames))
	for _, f := range frames {
		res = append(res, f.Event)
	}
	return res
}

func lastAck(t *testing.T, frames []received) AckPayload {
	t.Helper()
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Event == consts.EventAck {
			var ack AckPayload
			require.NoError(t, json.Unmarshal(frames[i].Data, &ack))
			return ack
		}
	}
	t.Fatal("no ack frame")
	return AckPayload{}
}

func TestRelay_JoinThenMessage(t *testing.T) {
	f := newRelayFixture(t)
	admin := f.connect(security.NewStaffSession(&security.StaffClaims{StaffID: "a1", Roles: []string{consts.RoleAdmin}}))
	visitor := f.connect(security.NewVisitorSession())

	f.emit(visitor, consts.EventJoin, `{"threadId":"th_1","role":"user","userMeta":{"name":"Ani"}}`, 0)
	assert.Equal(t, "th_1", visitor.CurrentThread())
	assert.Equal(t, 1, f.hub.GroupSize(consts.ThreadGroup("th_1")))
	assert.Equal(t, []string{consts.EventThreadNew, consts.EventThreadUpdate}, events(drain(t, admin)))

	// 未带 threadId 时使用最近 join 的会话
	f.emit(visitor, consts.EventMessage, `{"text":"Hello","clientMsgId":"c-1"}`, 1)

	frames := drain(t, visitor)
	assert.Equal(t, []string{consts.EventMessage, consts.EventAck}, events(frames))
	ack := lastAck(t, frames)
	assert.Equal(t, int64(1), ack.Ack)
	assert.True(t, ack.OK)
	require.NotNil(t, ack.Message)
	assert.Equal(t, "Hello", ack.Message.Text)
	assert.Equal(t, "user", ack.Message.Sender)
	assert.Equal(t, "c-1", ack.Message.ClientMsgID)

	assert.Equal(t, []string{consts.EventThreadUpdate}, events(drain(t, admin)))

	thread, err := f.threads.GetThread(context.Background(), "th_1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), thread.UnreadForAdmin())
	assert.Equal(t, "Ani", thread.ParticipantMeta["name"])
}

func TestRelay_VisitorCannotClaimAdmin(t *testing.T) {
	f := newRelayFixture(t)
	visitor := f.connect(security.NewVisitorSession())

	f.emit(visitor, consts.EventJoin, `{"threadId":"th_1","role":"admin"}`, 0)

	assert.Equal(t, "", visitor.CurrentThread())
	assert.Equal(t, 0, f.hub.GroupSize(consts.GroupAdmin))
	assert.Equal(t, 0, f.hub.GroupSize(consts.ThreadGroup("th_1")))
	_, err := f.threads.GetThread(context.Background(), "th_1")
	assert.ErrorIs(t, err, service.ErrThreadNotFound)
}

func TestRelay_MessageRejected(t *testing.T) {
	f := newRelayFixture(t)
	visitor := f.connect(security.NewVisitorSession())

	cases := []struct {
		name string
		data string
	}{
		{"blank text", `{"threadId":"th_1","text":"   "}`},
		{"no thread", `{"text":"hello"}`},
		{"malformed", `{"threadId":`},
		{"bad sender", `{"threadId":"th_1","text":"hi","sender":"bot"}`},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f.emit(visitor, consts.EventMessage, tc.data, int64(i+1))
			frames := drain(t, visitor)
			require.Len(t, frames, 1)
			ack := lastAck(t, frames)
			assert.Equal(t, int64(i+1), ack.Ack)
			assert.False(t, ack.OK)
			assert.Nil(t, ack.Message)
		})
	}

	_, err := f.threads.GetThread(context.Background(), "th_1")
	assert.ErrorIs(t, err, service.ErrThreadNotFound)
}

func TestRelay_MessageWithoutAck(t *testing.T) {
	f := newRelayFixture(t)
	visitor := f.connect(security.NewVisitorSession())

	f.emit(visitor, consts.EventMessage, `{"threadId":"th_1","text":"   "}`, 0)
	assert.Empty(t, drain(t, visitor))
}

func TestRelay_AdminRead(t *testing.T) {
	f := newRelayFixture(t)
	admin := f.connect(security.NewStaffSession(&security.StaffClaims{StaffID: "a1", Roles: []string{consts.RoleAdmin}}))
	visitor := f.connect(security.NewVisitorSession())

	f.emit(visitor, consts.EventMessage, `{"threadId":"th_1","text":"Hello"}`, 0)
	f.emit(visitor, consts.EventMessage, `{"threadId":"th_1","text":"Are you there?"}`, 0)
	drain(t, admin)

	f.emit(admin, consts.EventRead, `{"threadId":"th_1","side":"admin"}`, 0)
	assert.Equal(t, []string{consts.EventThreadUpdate}, events(drain(t, admin)))

	thread, err := f.threads.GetThread(context.Background(), "th_1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), thread.UnreadForAdmin())
}

func TestRelay_VisitorCannotClearAdminUnread(t *testing.T) {
	f := newRelayFixture(t)
	visitor := f.connect(security.NewVisitorSession())

	f.emit(visitor, consts.EventMessage, `{"threadId":"th_1","text":"Hello"}`, 0)
	f.emit(visitor, consts.EventRead, `{"threadId":"th_1","side":"admin"}`, 0)

	thread, err := f.threads.GetThread(context.Background(), "th_1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), thread.UnreadForAdmin())
}

func TestRelay_UnknownEventIgnored(t *testing.T) {
	f := newRelayFixture(t)
	visitor := f.connect(security.NewVisitorSession())

	f.emit(visitor, "typing", `{"threadId":"th_1"}`, 3)
	assert.Empty(t, drain(t, visitor))
}

type downThreadStore struct {
	*memstore.ThreadStore
	down atomic.Bool
}

func (s *downThreadStore) EnsureThread(ctx context.Context, id string, meta map[string]interface{}) (*model.ChatThread, bool, error) {
	if s.down.Load() {
		return nil, false, errors.New("mysql: connection refused")
	}
	return s.ThreadStore.EnsureThread(ctx, id, meta)
}

func (s *downThreadStore) MarkRead(ctx context.Context, id string, side string) (*model.ChatThread, error) {
	if s.down.Load() {
		return nil, errors.New("mysql: connection refused")
	}
	return s.ThreadStore.MarkRead(ctx, id, side)
}

func TestRelay_StoreDown(t *testing.T) {
	hub := NewHub()
	threads := &downThreadStore{ThreadStore: memstore.NewThreadStore()}
	svc := service.NewChatService(config.ChatConfig{}, threads, memstore.NewMessageStore(),
		NewLocalBus(hub), memstore.NewDeduper(time.Minute), nil, nil)
	t.Cleanup(svc.Close)
	f := &relayFixture{relay: NewRelay(hub, svc, 16), hub: hub, threads: threads.ThreadStore}
	visitor := f.connect(security.NewVisitorSession())
	threads.down.Store(true)

	// join 与 read 失败只记录日志
	f.emit(visitor, consts.EventJoin, `{"threadId":"th_1","role":"user"}`, 0)
	assert.Empty(t, visitor.CurrentThread())
	f.emit(visitor, consts.EventRead, `{"threadId":"th_1","side":"user"}`, 0)
	assert.Empty(t, drain(t, visitor))

	f.emit(visitor, consts.EventMessage, `{"threadId":"th_1","text":"Hello","clientMsgId":"c-7"}`, 7)
	frames := drain(t, visitor)
	assert.Equal(t, []string{consts.EventAck}, events(frames))
	ack := lastAck(t, frames)
	assert.Equal(t, int64(7), ack.Ack)
	assert.False(t, ack.OK)
	assert.Nil(t, ack.Message)

	// 同一 clientMsgId 重试仍会真正执行
	f.emit(visitor, consts.EventMessage, `{"threadId":"th_1","text":"Hello","clientMsgId":"c-7"}`, 8)
	assert.False(t, lastAck(t, drain(t, visitor)).OK)

	threads.down.Store(false)
	f.emit(visitor, consts.EventMessage, `{"threadId":"th_1","text":"Hello","clientMsgId":"c-7"}`, 9)
	ack = lastAck(t, drain(t, visitor))
	assert.True(t, ack.OK)
	require.NotNil(t, ack.Message)
	assert.Equal(t, uint64(1), ack.Message.Seq)
}
