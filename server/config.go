package server

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 服务端全部可配置项
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	World   WorldConfig   `mapstructure:"world"`
	Traffic TrafficConfig `mapstructure:"traffic"`
	Net     NetConfig     `mapstructure:"net"`
	Journal JournalConfig `mapstructure:"journal"`
}

type ServerConfig struct {
	Port   int    `mapstructure:"port"`
	Static string `mapstructure:"static"` // 前端静态资源目录，空则不挂载
}

type LogConfig struct {
	File string `mapstructure:"file"`
}

// WorldConfig 城市网格参数
type WorldConfig struct {
	Rows      int     `mapstructure:"rows"`
	Cols      int     `mapstructure:"cols"`
	BlockSize float64 `mapstructure:"blockSize"`
	Seed      int64   `mapstructure:"seed"` // 0 表示按启动时间随机
}

// TrafficConfig AI 车流参数
type TrafficConfig struct {
	Count    int     `mapstructure:"count"`
	Speed    float64 `mapstructure:"speed"` // 单位/秒
	TickRate int     `mapstructure:"tickRate"`
}

// NetConfig 每连接发送队列与慢连接判定
type NetConfig struct {
	SendQueue int `mapstructure:"sendQueue"`
	MaxDrops  int `mapstructure:"maxDrops"` // 连续丢弃达到该值即关闭连接，0 表示只丢不关
}

type JournalConfig struct {
	Dir string `mapstructure:"dir"` // 为空时不记录
}

// Addr 监听地址
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.static", "")
	v.SetDefault("log.file", "citydrive.log")

	v.SetDefault("world.rows", 16)
	v.SetDefault("world.cols", 16)
	v.SetDefault("world.blockSize", 100.0)
	v.SetDefault("world.seed", 0)

	v.SetDefault("traffic.count", 15)
	v.SetDefault("traffic.speed", 60.0) // 30Hz 下每 Tick 2 单位
	v.SetDefault("traffic.tickRate", 30)

	v.SetDefault("net.sendQueue", 64)
	v.SetDefault("net.maxDrops", 90)

	v.SetDefault("journal.dir", "")
}

// LoadConfig 读取配置：默认值 < 配置文件 < 环境变量
// 环境变量前缀 CITYDRIVE_，如 CITYDRIVE_TRAFFIC_COUNT；PORT 直接映射到 server.port
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("citydrive")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.port", "PORT", "CITYDRIVE_SERVER_PORT")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 检查取值范围
func (c Config) Validate() error {
	switch {
	case c.World.Rows <= 0 || c.World.Cols <= 0:
		return fmt.Errorf("world grid must be positive, got %dx%d", c.World.Rows, c.World.Cols)
	case c.World.BlockSize <= 0:
		return fmt.Errorf("world.blockSize must be positive, got %v", c.World.BlockSize)
	case c.Traffic.Count < 0:
		return fmt.Errorf("traffic.count must be >= 0, got %d", c.Traffic.Count)
	case c.Traffic.TickRate <= 0:
		return fmt.Errorf("traffic.tickRate must be positive, got %d", c.Traffic.TickRate)
	case c.Net.SendQueue <= 0:
		return fmt.Errorf("net.sendQueue must be positive, got %d", c.Net.SendQueue)
	case c.Net.MaxDrops < 0:
		return fmt.Errorf("net.maxDrops must be >= 0, got %d", c.Net.MaxDrops)
	}
	return nil
}
