package config

import (
	"ix-pipeline-sol/pkg/logger"
)

type LogConfig struct {
	Format   string `yaml:"format"`   // 日志格式，支持 "console" 或 "json"
	LogDir   string `yaml:"log_dir"`  // 日志目录（可为相对路径或绝对路径）
	Level    string `yaml:"level"`    // 日志级别：debug / info / warn / error
	Compress bool   `yaml:"compress"` // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// GrpcConfig 表示 Geyser gRPC 订阅相关配置
type GrpcConfig struct {
	Endpoint string `yaml:"endpoint"` // Geyser gRPC 地址
	XToken   string `yaml:"x_token"`  // 认证 token

	ConnectTimeoutSec        int `yaml:"connect_timeout_sec"`         // 建连超时（秒）
	ReconnectIntervalSec     int `yaml:"reconnect_interval_sec"`      // 重连基础间隔（秒）
	StreamPingIntervalSec    int `yaml:"stream_ping_interval_sec"`    // Stream 心跳间隔（秒）
	KeepalivePingIntervalSec int `yaml:"keepalive_ping_interval_sec"` // 传输层 keepalive 间隔（秒）
	KeepalivePingTimeoutSec  int `yaml:"keepalive_ping_timeout_sec"`  // 传输层 keepalive 超时（秒）
	SendTimeoutSec           int `yaml:"send_timeout_sec"`            // gRPC 发送超时（秒）
	BlockRecvTimeoutSec      int `yaml:"block_recv_timeout_sec"`      // block 接收超时（秒），超时触发重连

	InitialWindowSize     int `yaml:"initial_window_size"`      // 流控窗口
	InitialConnWindowSize int `yaml:"initial_conn_window_size"` // 连接级流控窗口
	MaxCallSendMsgSize    int `yaml:"max_call_send_msg_size"`   // 单次发送消息上限（字节）
	MaxCallRecvMsgSize    int `yaml:"max_call_recv_msg_size"`   // 单次接收消息上限（字节）
}

// KafkaProducerConfig 表示 Kafka 生产者相关配置
type KafkaProducerConfig struct {
	Brokers   string `yaml:"brokers"`    // Kafka broker 地址，多个用英文逗号分隔
	BatchSize int    `yaml:"batch_size"` // 批处理大小（单位字节）
	LingerMs  int    `yaml:"linger_ms"`  // 批处理最大延迟（毫秒）

	Topics struct {
		Trade      string `yaml:"trade"`       // 成交事件 topic
		DeadLetter string `yaml:"dead_letter"` // 处理失败交易的归档 topic（离线重放用）
	} `yaml:"topics"`

	Partitions struct {
		Trade      int `yaml:"trade"`       // trade topic 的分区数
		DeadLetter int `yaml:"dead_letter"` // dead_letter topic 的分区数
	} `yaml:"partitions"`
}

// PipelineConfig 表示指令 pipeline 相关配置
type PipelineConfig struct {
	TrackedMint        string `yaml:"tracked_mint"`          // 追踪的 mint 地址（base58）
	Workers            int    `yaml:"workers"`               // 每个区块内交易级并发度，0 表示按 CPU 数
	EventSendTimeoutMs int    `yaml:"event_send_timeout_ms"` // 单条事件发送到 Kafka 并等待 ack 的超时时间
}

// ProgressConfig 表示 slot 处理进度（Redis 判重）相关配置
type ProgressConfig struct {
	SlotTtlSec int `yaml:"slot_ttl_sec"` // slot 状态保留时长（秒），0 表示默认 3 天
}

// Config 是主配置结构体，用于驱动 pipeline 服务
type Config struct {
	LogConf           LogConfig           `yaml:"logger"`         // 日志配置
	GrpcConf          GrpcConfig          `yaml:"grpc"`           // Geyser 订阅配置
	KafkaProducerConf KafkaProducerConfig `yaml:"kafka_producer"` // Kafka 生产者配置
	PipelineConf      PipelineConfig      `yaml:"pipeline"`       // pipeline 配置
	ProgressConf      ProgressConfig      `yaml:"progress"`       // 进度判重配置

	RedisAddr   string `yaml:"redis_addr"`   // Redis 地址
	RpcEndpoint string `yaml:"rpc_endpoint"` // Solana RPC 地址（漏扫检测用）
}
