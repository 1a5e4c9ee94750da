package service

import (
	"Realty/internal/api/config"
	"Realty/internal/api/dto"
	"Realty/internal/model"
	"Realty/internal/pkg/consts"
	"Realty/internal/pkg/metrics"
	"Realty/internal/pkg/mongo"
	"Realty/internal/pkg/security"
	"Realty/internal/pkg/util"
	"Realty/internal/repository"
	"context"
	"errors"
	log "log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

const (
	previewMaxLen       = 512
	defaultThreadLimit  = 200
	defaultMessageLimit = 1000
	defaultSearchSize   = 20
	maxSearchSize       = 100
	publishTimeout      = 2 * time.Second
)

// Broadcaster 向广播组推送事件，实现见 realtime.LocalBus / realtime.RedisBus
type Broadcaster interface {
	Publish(ctx context.Context, group string, event string, payload interface{}) error
}

// EventSink 领域事件出口 (Kafka)，投递失败由实现自行记录
type EventSink interface {
	Emit(ctx context.Context, evt *dto.ChatEvent)
}

// ThreadSearcher 会话全文检索，返回命中的会话 ID 与下一页的排序游标
type ThreadSearcher interface {
	SearchThreadIDs(ctx context.Context, keyword string, after []interface{}, size int) ([]string, []interface{}, error)
}

// Deduper 客户端幂等键占位
type Deduper interface {
	Claim(ctx context.Context, threadID string, key string) (bool, error)
	Release(ctx context.Context, threadID string, key string) error
}

// ChatService 实时通道与 HTTP 兜底接口共用的会话服务
type ChatService interface {
	StartThread(ctx context.Context, sess security.Session, req *dto.StartThreadReq) (*dto.ThreadDTO, bool, error)
	JoinThread(ctx context.Context, sess security.Session, threadID string, meta map[string]interface{}) (*dto.ThreadDTO, error)
	SendMessage(ctx context.Context, sess security.Session, req *dto.SendMessageReq) (*dto.MessageDTO, error)
	MarkRead(ctx context.Context, sess security.Session, threadID string, side string) (*dto.ThreadDTO, error)
	ListThreads(ctx context.Context) ([]*dto.ThreadDTO, error)
	ListMessages(ctx context.Context, threadID string) ([]*dto.MessageDTO, error)
	SearchThreads(ctx context.Context, keyword string, cursor string, size int) ([]*dto.ThreadDTO, string, error)
	ReconcileUnread(ctx context.Context, since time.Time) (int, error)
	Close()
}

type chatServiceImpl struct {
	cfg         config.ChatConfig
	threadRepo  repository.ThreadRepo
	messageRepo mongo.MessageRepo
	bus         Broadcaster
	deduper     Deduper
	events      EventSink
	searcher    ThreadSearcher
	retryChan   chan *mongo.Message
	wg          sync.WaitGroup
	stopChan    chan struct{}
	closeOnce   sync.Once
}

// NewChatService 构造函数：deduper / events / searcher 可为 nil，对应功能关闭
func NewChatService(
	cfg config.ChatConfig,
	threadRepo repository.ThreadRepo,
	messageRepo mongo.MessageRepo,
	bus Broadcaster,
	deduper Deduper,
	events EventSink,
	searcher ThreadSearcher,
) ChatService {
	if cfg.ThreadListLimit <= 0 {
		cfg.ThreadListLimit = defaultThreadLimit
	}
	if cfg.MessageListLimit <= 0 {
		cfg.MessageListLimit = defaultMessageLimit
	}
	s := &chatServiceImpl{
		cfg:         cfg,
		threadRepo:  threadRepo,
		messageRepo: messageRepo,
		bus:         bus,
		deduper:     deduper,
		events:      events,
		searcher:    searcher,
		retryChan:   make(chan *mongo.Message, 2048),
		stopChan:    make(chan struct{}),
	}

	workerCount := 5
	s.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go s.calibrationWorker()
	}

	return s
}

// StartThread 创建或获取会话，未指定 ID 时由服务端生成
func (s *chatServiceImpl) StartThread(ctx context.Context, sess security.Session, req *dto.StartThreadReq) (*dto.ThreadDTO, bool, error) {
	id := strings.TrimSpace(req.ThreadID)
	if id == "" {
		id = consts.ThreadIDPrefix + uuid.NewString()
	} else if !util.ValidThreadID(id) {
		return nil, false, ErrThreadIDInvalid
	}

	thread, created, err := s.ensureThread(ctx, id, req.Meta)
	if err != nil {
		return nil, false, err
	}
	log.InfoContext(ctx, "chat thread started",
		"thread_id", id, "created", created, "role", sess.Role())
	return toThreadDTO(thread), created, nil
}

// JoinThread 实时通道 join：确保会话存在并合并访客信息
func (s *chatServiceImpl) JoinThread(ctx context.Context, _ security.Session, threadID string, meta map[string]interface{}) (*dto.ThreadDTO, error) {
	threadID = strings.TrimSpace(threadID)
	if !util.ValidThreadID(threadID) {
		return nil, ErrThreadIDInvalid
	}
	thread, _, err := s.ensureThread(ctx, threadID, meta)
	if err != nil {
		return nil, err
	}
	return toThreadDTO(thread), nil
}

// SendMessage 发送消息：MySQL 原子定序 → MongoDB 落库 → 广播
func (s *chatServiceImpl) SendMessage(ctx context.Context, sess security.Session, req *dto.SendMessageReq) (*dto.MessageDTO, error) {
	if util.Blank(req.ThreadID) || util.Blank(req.Text) {
		return nil, ErrParamInvalid
	}
	threadID := strings.TrimSpace(req.ThreadID)
	text := strings.TrimSpace(req.Text)
	if !util.ValidThreadID(threadID) {
		return nil, ErrThreadIDInvalid
	}

	// 发送方以会话身份为准，请求体里的 sender 只是参考
	sender := sess.Role()
	if !model.IsValidSender(sender) {
		return nil, ErrSenderInvalid
	}

	clientMsgID := strings.TrimSpace(req.ClientMsgID)
	if clientMsgID != "" && s.deduper != nil {
		claimed, err := s.deduper.Claim(ctx, threadID, clientMsgID)
		if err != nil {
			log.WarnContext(ctx, "clientMsgId claim failed, sending without dedupe", "thread_id", threadID, "err", err)
			claimed = true
		}
		if !claimed {
			metrics.DuplicateMessages.Inc()
			return s.replay(ctx, threadID, clientMsgID)
		}
	}

	_, created, err := s.threadRepo.EnsureThread(ctx, threadID, nil)
	if err != nil {
		s.releaseClaim(ctx, threadID, clientMsgID)
		return nil, err
	}
	if created {
		metrics.ThreadsCreated.Inc()
	}

	res, err := s.threadRepo.AppendMessage(ctx, threadID, sender, util.Truncate(text, previewMaxLen))
	if err != nil {
		s.releaseClaim(ctx, threadID, clientMsgID)
		return nil, err
	}

	msg := &mongo.Message{
		ThreadID:    threadID,
		Sender:      sender,
		Text:        text,
		Seq:         res.Seq,
		ClientMsgID: clientMsgID,
		TS:          res.TS,
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err = s.messageRepo.SaveMessage(writeCtx, msg); err != nil {
		log.ErrorContext(ctx, "save message failed, queued for calibration",
			"thread_id", threadID, "seq", msg.Seq, "err", err)
		// 交给 worker 的是副本，广播继续使用原消息
		retry := *msg
		select {
		case s.retryChan <- &retry:
			metrics.MessageWriteRetries.WithLabelValues("queued").Inc()
		default:
			metrics.MessageWriteRetries.WithLabelValues("lost").Inc()
		}
	}
	metrics.MessagesSent.WithLabelValues(sender).Inc()

	out := toMessageDTO(msg)
	s.publish(ctx, consts.ThreadGroup(threadID), consts.EventMessage, out)
	s.notifyAdmins(ctx, res.Thread, created)

	if created {
		s.emit(ctx, &dto.ChatEvent{Type: dto.EventThreadCreated, ThreadID: threadID, At: res.Thread.CreatedAt})
	}
	s.emit(ctx, &dto.ChatEvent{Type: dto.EventMessageSent, ThreadID: threadID, Sender: sender, Seq: res.Seq, At: res.TS})

	return out, nil
}

// MarkRead 把一方的已读水位推到最新，未读归零
func (s *chatServiceImpl) MarkRead(ctx context.Context, sess security.Session, threadID string, side string) (*dto.ThreadDTO, error) {
	threadID = strings.TrimSpace(threadID)
	if !util.ValidThreadID(threadID) {
		return nil, ErrThreadIDInvalid
	}
	if !model.IsValidSender(side) {
		return nil, ErrSenderInvalid
	}
	if !sess.CanClear(side) {
		return nil, ErrForbidden
	}

	thread, err := s.threadRepo.MarkRead(ctx, threadID, side)
	if err != nil {
		return nil, err
	}

	s.notifyAdmins(ctx, thread, false)
	s.emit(ctx, &dto.ChatEvent{Type: dto.EventThreadRead, ThreadID: threadID, Side: side, At: time.Now()})
	return toThreadDTO(thread), nil
}

// ListThreads 最后消息时间倒序
func (s *chatServiceImpl) ListThreads(ctx context.Context) ([]*dto.ThreadDTO, error) {
	threads, err := s.threadRepo.ListThreads(ctx, s.cfg.ThreadListLimit)
	if err != nil {
		return nil, err
	}
	res := make([]*dto.ThreadDTO, 0, len(threads))
	for _, t := range threads {
		res = append(res, toThreadDTO(t))
	}
	return res, nil
}

// ListMessages 按 seq 升序，空会话与不存在的会话都返回空列表
func (s *chatServiceImpl) ListMessages(ctx context.Context, threadID string) ([]*dto.MessageDTO, error) {
	threadID = strings.TrimSpace(threadID)
	if !util.ValidThreadID(threadID) {
		return nil, ErrThreadIDInvalid
	}
	models, err := s.messageRepo.ListMessages(ctx, threadID, s.cfg.MessageListLimit)
	if err != nil {
		return nil, err
	}
	res := make([]*dto.MessageDTO, 0, len(models))
	for _, m := range models {
		res = append(res, toMessageDTO(m))
	}
	return res, nil
}

// SearchThreads ES 只负责命中与排序，会话数据以 MySQL 为准
func (s *chatServiceImpl) SearchThreads(ctx context.Context, keyword string, cursor string, size int) ([]*dto.ThreadDTO, string, error) {
	if s.searcher == nil {
		return nil, "", ErrSearchUnavailable
	}
	after, err := util.DecodeCursor(cursor)
	if err != nil {
		return nil, "", ErrCursorInvalid
	}
	if size <= 0 {
		size = defaultSearchSize
	}
	size = util.ClampInt(size, 1, maxSearchSize)

	ids, next, err := s.searcher.SearchThreadIDs(ctx, strings.TrimSpace(keyword), after, size)
	if err != nil {
		return nil, "", err
	}
	threads, err := s.threadRepo.GetThreads(ctx, ids)
	if err != nil {
		return nil, "", err
	}

	res := make([]*dto.ThreadDTO, 0, len(threads))
	for _, t := range threads {
		res = append(res, toThreadDTO(t))
	}
	if len(ids) < size {
		next = nil
	}
	return res, util.EncodeCursor(next), nil
}

// ReconcileUnread 重新推送近期仍有未读的会话，弥补丢失的 thread:update
func (s *chatServiceImpl) ReconcileUnread(ctx context.Context, since time.Time) (int, error) {
	threads, err := s.threadRepo.ListUnreadForAdmin(ctx, since, s.cfg.ThreadListLimit)
	if err != nil {
		return 0, err
	}
	for _, t := range threads {
		s.publish(ctx, consts.GroupAdmin, consts.EventThreadUpdate, &dto.ThreadEventDTO{ThreadID: t.ID, Thread: toThreadDTO(t)})
	}
	return len(threads), nil
}

func (s *chatServiceImpl) Close() {
	s.closeOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
	log.Info("ChatService shut down gracefully")
}

func (s *chatServiceImpl) ensureThread(ctx context.Context, id string, meta map[string]interface{}) (*model.ChatThread, bool, error) {
	thread, created, err := s.threadRepo.EnsureThread(ctx, id, meta)
	if err != nil {
		return nil, false, err
	}
	if created {
		metrics.ThreadsCreated.Inc()
		s.emit(ctx, &dto.ChatEvent{Type: dto.EventThreadCreated, ThreadID: id, At: thread.CreatedAt})
	}
	// 新会话或访客信息有变化时才通知客服
	if created || len(meta) > 0 {
		s.notifyAdmins(ctx, thread, created)
		if !created {
			s.emit(ctx, &dto.ChatEvent{Type: dto.EventThreadUpdated, ThreadID: id, At: thread.UpdatedAt})
		}
	}
	return thread, created, nil
}

// replay 重复的 clientMsgId：返回首次发送的结果，不再写入和广播
func (s *chatServiceImpl) replay(ctx context.Context, threadID string, clientMsgID string) (*dto.MessageDTO, error) {
	orig, err := s.messageRepo.GetByClientMsgID(ctx, threadID, clientMsgID)
	if err != nil {
		if errors.Is(err, mongo.ErrMessageNotFound) {
			return nil, ErrDuplicateMessage
		}
		return nil, err
	}
	return toMessageDTO(orig), nil
}

func (s *chatServiceImpl) releaseClaim(ctx context.Context, threadID string, clientMsgID string) {
	if clientMsgID == "" || s.deduper == nil {
		return
	}
	if err := s.deduper.Release(context.WithoutCancel(ctx), threadID, clientMsgID); err != nil {
		log.WarnContext(ctx, "release clientMsgId failed", "thread_id", threadID, "err", err)
	}
}

func (s *chatServiceImpl) notifyAdmins(ctx context.Context, thread *model.ChatThread, created bool) {
	payload := &dto.ThreadEventDTO{ThreadID: thread.ID, Thread: toThreadDTO(thread)}
	if created {
		s.publish(ctx, consts.GroupAdmin, consts.EventThreadNew, payload)
	}
	s.publish(ctx, consts.GroupAdmin, consts.EventThreadUpdate, payload)
}

// publish 推送失败只记录，不影响已经落库的结果
func (s *chatServiceImpl) publish(ctx context.Context, group string, event string, payload interface{}) {
	if s.bus == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.bus.Publish(pubCtx, group, event, payload); err != nil {
		metrics.BroadcastErrors.Inc()
		log.ErrorContext(ctx, "Failed to publish chat event", "group", group, "event", event, "err", err)
	}
}

func (s *chatServiceImpl) emit(ctx context.Context, evt *dto.ChatEvent) {
	if s.events == nil {
		return
	}
	s.events.Emit(ctx, evt)
}

func (s *chatServiceImpl) calibrationWorker() {
	defer s.wg.Done()
	for {
		select {
		case msg := <-s.retryChan:
			backoff := time.Second
			saved := false
			for i := 0; i < 3 && !saved; i++ {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := s.messageRepo.SaveMessage(ctx, msg)
				cancel()
				if err == nil {
					saved = true
					break
				}
				select {
				case <-time.After(backoff):
				case <-s.stopChan:
					metrics.MessageWriteRetries.WithLabelValues("lost").Inc()
					return
				}
				backoff *= 2
			}
			if saved {
				metrics.MessageWriteRetries.WithLabelValues("recovered").Inc()
			} else {
				metrics.MessageWriteRetries.WithLabelValues("lost").Inc()
				log.Error("message body lost after retries", "thread_id", msg.ThreadID, "seq", msg.Seq)
			}
		case <-s.stopChan:
			return
		}
	}
}

func toThreadDTO(t *model.ChatThread) *dto.ThreadDTO {
	d := &dto.ThreadDTO{}
	_ = copier.Copy(d, t)
	d.ParticipantMeta = map[string]interface{}(t.ParticipantMeta)
	if d.ParticipantMeta == nil {
		d.ParticipantMeta = map[string]interface{}{}
	}
	d.UnreadForAdmin = t.UnreadForAdmin()
	d.UnreadForUser = t.UnreadForUser()
	return d
}

func toMessageDTO(m *mongo.Message) *dto.MessageDTO {
	return &dto.MessageDTO{
		ID: m.ID, ThreadID: m.ThreadID, Sender: m.Sender, Text: m.Text,
		Seq: m.Seq, ClientMsgID: m.ClientMsgID, TS: m.TS,
	}
}
