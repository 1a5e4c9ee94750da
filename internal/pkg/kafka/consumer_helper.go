package kafka

import (
	"Realty/internal/api/dto"
	"context"
	"errors"
	log "log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
)

const (
	batchSize    = 32
	batchTimeout = 1 * time.Second
)

type LogicFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

// pullMessageBatch 拉取一批消息并执行业务逻辑
func pullMessageBatch(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim, logic LogicFunc) error {
	batch := make([]*sarama.ConsumerMessage, 0, batchSize)
	ticker := time.NewTicker(batchTimeout)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				if len(batch) > 0 {
					processBatch(session, batch, logic)
				}
				return nil
			}
			batch = append(batch, msg)
			if len(batch) >= batchSize {
				processBatch(session, batch, logic)
				// 清空缓冲区 & 重值定时器
				batch = make([]*sarama.ConsumerMessage, 0, batchSize)
				ticker.Reset(batchTimeout)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				processBatch(session, batch, logic)
				batch = make([]*sarama.ConsumerMessage, 0, batchSize)
			}
		case <-session.Context().Done():
			return nil
		}
	}
}

// processBatch 并发处理一批消息，同一会话只处理最后一条
func processBatch(session sarama.ConsumerGroupSession, messages []*sarama.ConsumerMessage, logic LogicFunc) {
	var wg sync.WaitGroup

	for _, msg := range latestPerKey(messages) {
		wg.Add(1)

		go func(m *sarama.ConsumerMessage) {
			defer wg.Done()
			var retryInterval = 100 * time.Millisecond

			for {
				err := logic(session.Context(), m)
				if err == nil {
					break
				}
				select {
				case <-session.Context().Done():
					return
				default:
				}

				log.Error("process message error", "err", err)
				time.Sleep(retryInterval)

				retryInterval *= 2
				if retryInterval > 5*time.Second {
					retryInterval = 5 * time.Second
				}
			}
		}(msg)
	}

	wg.Wait()

	// 会话结束时可能有消息没处理完，不提交位点，重平衡后重新消费
	if session.Context().Err() != nil {
		return
	}
	if len(messages) > 0 {
		lastMsg := messages[len(messages)-1]
		session.MarkMessage(lastMsg, "")
		// 关闭了自动提交，手动提交本批位点
		session.Commit()
	}
}

// latestPerKey 按 key (threadId) 折叠，保留每个 key 最后一条，顺序按首次出现。
// 索引处理器回源读取会话最新状态，旧事件没有意义
func latestPerKey(messages []*sarama.ConsumerMessage) []*sarama.ConsumerMessage {
	out := make([]*sarama.ConsumerMessage, 0, len(messages))
	pos := make(map[string]int, len(messages))
	for _, m := range messages {
		if len(m.Key) == 0 {
			out = append(out, m)
			continue
		}
		if i, ok := pos[string(m.Key)]; ok {
			out[i] = m
			continue
		}
		pos[string(m.Key)] = len(out)
		out = append(out, m)
	}
	return out
}

// ToChatEvent 反序列化聊天领域事件
func ToChatEvent(msg *sarama.ConsumerMessage) (*dto.ChatEvent, error) {
	var evt dto.ChatEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		log.Error("unmarshal chat event error", "err", err)
		return nil, err
	}
	if evt.ThreadID == "" {
		return nil, errors.New("chat event without threadId")
	}
	return &evt, nil
}
