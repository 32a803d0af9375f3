package config

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level            string   `json:"level" yaml:"level"`                       // debug/info/warn/error
	Encoding         string   `json:"encoding" yaml:"encoding"`                 // json/console
	EnableColor      bool     `json:"enableColor" yaml:"enableColor"`           // console 下彩色等级
	Development      bool     `json:"development" yaml:"development"`           // 开发模式附带堆栈
	OutputPaths      []string `json:"outputPaths" yaml:"outputPaths"`           // 普通日志输出
	ErrorOutputPaths []string `json:"errorOutputPaths" yaml:"errorOutputPaths"` // 内部错误输出
	Service          string   `json:"service" yaml:"service"`                   // 每条日志附带的服务名
	SampleInitial    int      `json:"sampleInitial" yaml:"sampleInitial"`       // 每秒同一消息前 N 条全量输出，0 关闭采样
	SampleThereafter int      `json:"sampleThereafter" yaml:"sampleThereafter"` // 之后每 M 条输出一条
}

// DefaultLoggerConfig 生产环境默认 JSON，开发环境默认彩色 console
func DefaultLoggerConfig() LoggerConfig {
	dev := getEnv("APP_ENV", EnvDevelopment) != EnvProduction
	encoding := "json"
	if dev {
		encoding = "console"
	}
	return LoggerConfig{
		Level:            getEnv("LOG_LEVEL", "info"),
		Encoding:         getEnv("LOG_ENCODING", encoding),
		EnableColor:      dev,
		Development:      dev,
		OutputPaths:      getEnvList("LOG_OUTPUT", []string{"stdout"}),
		ErrorOutputPaths: getEnvList("LOG_ERROR_OUTPUT", []string{"stderr"}),
		Service:          getEnv("LOG_SERVICE", "matching"),
		SampleInitial:    getEnvInt("LOG_SAMPLE_INITIAL", 100),
		SampleThereafter: getEnvInt("LOG_SAMPLE_THEREAFTER", 100),
	}
}
