package mongo

import (
	"context"
	"errors"

	pkgErrors "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MessageRepo interface {
	SaveMessage(ctx context.Context, msg *Message) error
	ListMessages(ctx context.Context, threadID string, limit int) ([]*Message, error)
	GetByClientMsgID(ctx context.Context, threadID string, clientMsgID string) (*Message, error)
}

// ErrMessageNotFound 按幂等键查不到消息
var ErrMessageNotFound = errors.New("message not found")

type messageRepoImpl struct {
	col *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) MessageRepo {
	return &messageRepoImpl{
		col: db.Collection("chat_message"),
	}
}

// EnsureIndexes 建立 (thread_id, seq) 唯一索引与幂等键稀疏索引
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("chat_message").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "thread_id", Value: 1}, {Key: "seq", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "thread_id", Value: 1}, {Key: "client_msg_id", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
	return err
}

// SaveMessage 将消息存入 MongoDB。seq 由 MySQL 原子分配，(thread_id, seq) 冲突说明
// 之前超时的那次写入其实已经成功，按已保存处理
func (s *messageRepoImpl) SaveMessage(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = primitive.NewObjectID().Hex()
	}
	_, err := s.col.InsertOne(ctx, msg)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return pkgErrors.Wrapf(err, "save message %s/%d", msg.ThreadID, msg.Seq)
	}
	return nil
}

// ListMessages 按 seq 升序 (最旧的在前)
func (s *messageRepoImpl) ListMessages(ctx context.Context, threadID string, limit int) ([]*Message, error) {
	filter := bson.M{"thread_id": threadID}
	findOptions := options.Find().
		SetSort(bson.D{{Key: "seq", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := s.col.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, pkgErrors.Wrapf(err, "list messages of %s", threadID)
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	messages := make([]*Message, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	return messages, nil
}

// GetByClientMsgID 根据客户端幂等键查询
func (s *messageRepoImpl) GetByClientMsgID(ctx context.Context, threadID string, clientMsgID string) (*Message, error) {
	var msg Message
	filter := bson.M{
		"thread_id":     threadID,
		"client_msg_id": clientMsgID,
	}
	err := s.col.FindOne(ctx, filter).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}
