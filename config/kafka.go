package config

import "time"

// KafkaConfig 领域事件投递配置，Brokers 为空时不启用
type KafkaConfig struct {
	Brokers      []string      `json:"brokers" yaml:"brokers"`
	EventTopic   string        `json:"eventTopic" yaml:"eventTopic"`
	BatchTimeout time.Duration `json:"batchTimeout" yaml:"batchTimeout"`
	WriteTimeout time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
}

func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:      getEnvList("KAFKA_BROKERS", nil),
		EventTopic:   getEnv("KAFKA_EVENT_TOPIC", "matching.events"),
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
}

// Enabled 是否配置了 broker
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}
