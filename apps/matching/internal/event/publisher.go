package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sudo-enjoy/matching-app-be/pkg/async"
	"github.com/sudo-enjoy/matching-app-be/pkg/logger"
)

// Publisher 领域事件发布接口
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Sender 消息写入端，由 pkg/kafka.Producer 实现
type Sender interface {
	Send(ctx context.Context, key, value []byte) error
}

// KafkaPublisher 序列化后写入 Kafka
type KafkaPublisher struct {
	sender Sender
}

func NewKafkaPublisher(sender Sender) *KafkaPublisher {
	return &KafkaPublisher{sender: sender}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.sender.Send(ctx, []byte(e.AggregateID), data)
}

// NopPublisher 未配置 Kafka 时使用，只输出 debug 日志
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, e Event) error {
	logger.Debug(ctx, "领域事件（未启用 Kafka）",
		logger.String("type", string(e.Type)),
		logger.String("aggregate_id", e.AggregateID),
	)
	return nil
}

// publishTimeout 单条事件发布的超时
const publishTimeout = 5 * time.Second

// PublishAsync 在协程池中发布，失败只记录日志，不影响主流程
func PublishAsync(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	e = e.WithContext(ctx)
	async.RunSafe(ctx, func(runCtx context.Context) {
		if err := p.Publish(runCtx, e); err != nil {
			logger.Warn(runCtx, "领域事件发布失败，放弃处理",
				logger.ErrorField("error", err),
				logger.String("type", string(e.Type)),
				logger.String("aggregate_id", e.AggregateID),
				logger.String("source", e.Source),
			)
		}
	}, publishTimeout)
}
