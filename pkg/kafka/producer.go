package kafka

import (
	"context"
	"time"

	"github.com/sudo-enjoy/matching-app-be/config"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer 对 kafka.Writer 的封装，按 key 哈希分区保证同一 key 有序
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 创建生产者（kafka-go 的 Writer 懒连接，不会在此处拨号）
func NewProducer(cfg config.KafkaConfig, l *zap.Logger) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.EventTopic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	if l != nil {
		w.ErrorLogger = NewZapLoggerAdapter(l)
	}
	return &Producer{writer: w}
}

// Send 同步写入一条消息
func (p *Producer) Send(ctx context.Context, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
		Time:  time.Now(),
	})
}

// Close 刷新缓冲并关闭
func (p *Producer) Close() error {
	return p.writer.Close()
}

// zapLoggerAdapter 把 kafka-go 的 Logger 接口接到 zap
type zapLoggerAdapter struct {
	l *zap.Logger
}

// NewZapLoggerAdapter 创建 kafka-go 可用的日志适配器
func NewZapLoggerAdapter(l *zap.Logger) kafka.Logger {
	return &zapLoggerAdapter{l: l}
}

func (a *zapLoggerAdapter) Printf(format string, args ...any) {
	a.l.Sugar().Warnf("kafka: "+format, args...)
}
