package repository

import (
	"Realty/internal/model"
	"context"
	stdErrors "errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrThreadNotFound = stdErrors.New("thread not found")

type ThreadRepo interface {
	EnsureThread(ctx context.Context, id string, meta map[string]interface{}) (*model.ChatThread, bool, error)
	GetThread(ctx context.Context, id string) (*model.ChatThread, error)
	GetThreads(ctx context.Context, ids []string) ([]*model.ChatThread, error)
	AppendMessage(ctx context.Context, id string, sender string, preview string) (*AppendResult, error)
	MarkRead(ctx context.Context, id string, side string) (*model.ChatThread, error)
	ListThreads(ctx context.Context, limit int) ([]*model.ChatThread, error)
	ListUnreadForAdmin(ctx context.Context, since time.Time, limit int) ([]*model.ChatThread, error)
}

// AppendResult 一次追加消息后的定序结果
type AppendResult struct {
	Seq    uint64
	TS     time.Time
	Thread *model.ChatThread
}

type threadRepoImpl struct {
	db *gorm.DB
}

func NewThreadRepo(db *gorm.DB) ThreadRepo {
	return &threadRepoImpl{db: db}
}

// EnsureThread 不存在则创建；已存在时只合并访客信息，计数与创建时间保持不变
func (s *threadRepoImpl) EnsureThread(ctx context.Context, id string, meta map[string]interface{}) (*model.ChatThread, bool, error) {
	var created bool
	var thread model.ChatThread
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		newThread := &model.ChatThread{
			ID:              id,
			ParticipantMeta: datatypes.JSONMap(meta),
			Status:          model.ThreadStatusOpen,
			LastMessageAt:   now,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if newThread.ParticipantMeta == nil {
			newThread.ParticipantMeta = datatypes.JSONMap{}
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(newThread)
		if res.Error != nil && !isDuplicateError(res.Error) {
			return res.Error
		}
		created = res.Error == nil && res.RowsAffected == 1

		if !created && len(meta) > 0 {
			patch, err := json.Marshal(meta)
			if err != nil {
				return err
			}
			err = tx.Model(&model.ChatThread{}).Where("id = ?", id).
				Updates(map[string]interface{}{
					"participant_meta": gorm.Expr("JSON_MERGE_PATCH(COALESCE(participant_meta, JSON_OBJECT()), ?)", string(patch)),
					"updated_at":       now,
				}).Error
			if err != nil {
				return err
			}
		}

		return tx.First(&thread, "id = ?", id).Error
	})
	if err != nil {
		return nil, false, errors.Wrapf(err, "ensure thread %s", id)
	}
	return &thread, created, nil
}

// GetThread 根据会话 ID 获取会话
func (s *threadRepoImpl) GetThread(ctx context.Context, id string) (*model.ChatThread, error) {
	var thread model.ChatThread
	err := s.db.WithContext(ctx).First(&thread, "id = ?", id).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrThreadNotFound
		}
		return nil, errors.Wrapf(err, "get thread %s", id)
	}
	return &thread, nil
}

// GetThreads 批量获取，返回顺序与 ids 一致，不存在的跳过
func (s *threadRepoImpl) GetThreads(ctx context.Context, ids []string) ([]*model.ChatThread, error) {
	if len(ids) == 0 {
		return []*model.ChatThread{}, nil
	}
	var found []*model.ChatThread
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, errors.Wrap(err, "get threads")
	}
	byID := make(map[string]*model.ChatThread, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}
	res := make([]*model.ChatThread, 0, len(found))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			res = append(res, t)
		}
	}
	return res, nil
}

// AppendMessage 核心定序逻辑：行锁内递增序列号与发送方计数，时间戳单调不减
func (s *threadRepoImpl) AppendMessage(ctx context.Context, id string, sender string, preview string) (*AppendResult, error) {
	roleCol := "user_msg_seq"
	if sender == model.SenderAdmin {
		roleCol = "admin_msg_seq"
	}

	var res AppendResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked model.ChatThread
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "last_message_at").
			First(&locked, "id = ?", id).Error
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return ErrThreadNotFound
			}
			return err
		}

		ts := time.Now()
		if ts.Before(locked.LastMessageAt) {
			ts = locked.LastMessageAt
		}

		err = tx.Model(&model.ChatThread{}).Where("id = ?", id).
			Updates(map[string]interface{}{
				"max_msg_seq":       gorm.Expr("max_msg_seq + 1"),
				roleCol:             gorm.Expr(roleCol + " + 1"),
				"last_message_text": preview,
				"last_sender":       sender,
				"last_message_at":   ts,
				"updated_at":        ts,
			}).Error
		if err != nil {
			return err
		}

		var thread model.ChatThread
		if err = tx.First(&thread, "id = ?", id).Error; err != nil {
			return err
		}
		res = AppendResult{Seq: thread.MaxMsgSeq, TS: ts, Thread: &thread}
		return nil
	})
	if err != nil {
		if stdErrors.Is(err, ErrThreadNotFound) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "append message to thread %s", id)
	}
	return &res, nil
}

// MarkRead 把一方的已读水位推到对方当前的发送序号
func (s *threadRepoImpl) MarkRead(ctx context.Context, id string, side string) (*model.ChatThread, error) {
	watermark, source := "user_read_seq", "admin_msg_seq"
	if side == model.SenderAdmin {
		watermark, source = "admin_read_seq", "user_msg_seq"
	}

	res := s.db.WithContext(ctx).Model(&model.ChatThread{}).Where("id = ?", id).
		Update(watermark, gorm.Expr(source))
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "mark thread %s read", id)
	}
	// 水位已是最新时 RowsAffected 也可能为 0，这里以查询结果判断是否存在
	return s.GetThread(ctx, id)
}

// ListThreads 按最后消息时间倒序
func (s *threadRepoImpl) ListThreads(ctx context.Context, limit int) ([]*model.ChatThread, error) {
	var threads []*model.ChatThread
	err := s.db.WithContext(ctx).
		Order("last_message_at DESC").
		Limit(limit).
		Find(&threads).Error
	if err != nil {
		return nil, errors.Wrap(err, "list threads")
	}
	return threads, nil
}

// ListUnreadForAdmin 最近有访客未读消息的会话
func (s *threadRepoImpl) ListUnreadForAdmin(ctx context.Context, since time.Time, limit int) ([]*model.ChatThread, error) {
	var threads []*model.ChatThread
	err := s.db.WithContext(ctx).
		Where("user_msg_seq > admin_read_seq AND last_message_at >= ?", since).
		Order("last_message_at DESC").
		Limit(limit).
		Find(&threads).Error
	if err != nil {
		return nil, errors.Wrap(err, "list unread threads")
	}
	return threads, nil
}

func isDuplicateError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}
	return false
}
