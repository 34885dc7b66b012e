// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const DefaultConfigPath = "configs/order-service.yaml"

// Config 是 order-service 的全部配置。
// 优先级: 环境变量 > .env > 配置文件 > 默认值
type Config struct {
	App struct {
		Name            string        `yaml:"name"`
		Port            int           `yaml:"port"`
		CORSOrigins     []string      `yaml:"cors_origins"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"app"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	Store struct {
		Driver string `yaml:"driver"` // pebble | mysql
		MySQL  struct {
			DSN             string        `yaml:"dsn"`
			MaxOpenConns    int           `yaml:"max_open_conns"`
			MaxIdleConns    int           `yaml:"max_idle_conns"`
			ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
			AutoMigrate     bool          `yaml:"auto_migrate"`
		} `yaml:"mysql"`
		Pebble struct {
			Path string `yaml:"path"`
		} `yaml:"pebble"`
	} `yaml:"store"`

	Engine struct {
		PlacementTimeout  time.Duration `yaml:"placement_timeout"`
		ProcessingTimeout time.Duration `yaml:"processing_timeout"`
	} `yaml:"engine"`

	Dispatch struct {
		Mode      string `yaml:"mode"` // local | kafka
		Workers   int    `yaml:"workers"`
		QueueSize int    `yaml:"queue_size"`
		Kafka     struct {
			Brokers         []string `yaml:"brokers"`
			Topic           string   `yaml:"topic"`
			GroupID         string   `yaml:"group_id"`
			DeadLetterTopic string   `yaml:"dead_letter_topic"`
		} `yaml:"kafka"`
	} `yaml:"dispatch"`

	Venue struct {
		Mode            string        `yaml:"mode"` // simulated | http
		URL             string        `yaml:"url"`
		Service         string        `yaml:"service"` // 通过 Nacos 发现时的服务名
		Path            string        `yaml:"path"`
		FillProbability float64       `yaml:"fill_probability"`
		Latency         time.Duration `yaml:"latency"`
		Rules           []VenueRule   `yaml:"rules"`
	} `yaml:"venue"`

	Guard struct {
		Mode  string        `yaml:"mode"` // none | redis | zookeeper
		TTL   time.Duration `yaml:"ttl"`
		Redis struct {
			Addrs string `yaml:"addrs"`
		} `yaml:"redis"`
		Zookeeper struct {
			Servers        []string      `yaml:"servers"`
			SessionTimeout time.Duration `yaml:"session_timeout"`
		} `yaml:"zookeeper"`
	} `yaml:"guard"`

	Infra struct {
		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`
		Nacos struct {
			ServerAddrs string `yaml:"server_addrs"` // 为空时不注册
			Namespace   string `yaml:"namespace"`
			Group       string `yaml:"group"`
		} `yaml:"nacos"`
	} `yaml:"infra"`
}

// VenueRule 对应模拟交易场所的一条 CEL 拒单规则
type VenueRule struct {
	Name   string `yaml:"name"`
	Expr   string `yaml:"expr"`
	Reason string `yaml:"reason"`
}

// DefaultConfig 返回不依赖任何外部中间件即可运行的配置
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "order-service"
	cfg.App.Port = 8080
	cfg.App.ShutdownTimeout = 15 * time.Second
	cfg.Log.Level = "info"
	cfg.Store.Driver = "pebble"
	cfg.Store.Pebble.Path = "data/orders"
	cfg.Store.MySQL.MaxOpenConns = 20
	cfg.Store.MySQL.MaxIdleConns = 10
	cfg.Store.MySQL.ConnMaxLifetime = time.Hour
	cfg.Engine.PlacementTimeout = 10 * time.Second
	cfg.Engine.ProcessingTimeout = 30 * time.Second
	cfg.Dispatch.Mode = "local"
	cfg.Dispatch.Workers = 8
	cfg.Dispatch.QueueSize = 1024
	cfg.Dispatch.Kafka.Topic = "order-placement"
	cfg.Dispatch.Kafka.GroupID = "order-placement-engine"
	cfg.Dispatch.Kafka.DeadLetterTopic = "order-placement-dlt"
	cfg.Venue.Mode = "simulated"
	cfg.Venue.Path = "/orders"
	cfg.Venue.FillProbability = 0.9
	cfg.Guard.Mode = "none"
	cfg.Guard.TTL = time.Minute
	cfg.Guard.Zookeeper.SessionTimeout = 5 * time.Second
	cfg.Infra.Nacos.Group = "DEFAULT_GROUP"
	return cfg
}

// LoadConfig 读取配置文件、.env 和环境变量。
// path 为空时使用 CONFIG_PATH 或默认路径；默认路径不存在时只用默认值。
func LoadConfig(path string) (*Config, error) {
	// .env 可选，不存在时忽略
	_ = godotenv.Load()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("CONFIG_PATH")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	if err := overrideWithEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

func overrideWithEnv(cfg *Config) error {
	if v := os.Getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Errorf("invalid HTTP_PORT %q", v)
		}
		cfg.App.Port = port
	}
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Store.Driver, "STORE_DRIVER")
	setString(&cfg.Store.MySQL.DSN, "MYSQL_DSN")
	setString(&cfg.Store.Pebble.Path, "PEBBLE_PATH")
	setString(&cfg.Dispatch.Mode, "DISPATCH_MODE")
	setList(&cfg.Dispatch.Kafka.Brokers, "KAFKA_BROKERS")
	setString(&cfg.Venue.Mode, "VENUE_MODE")
	setString(&cfg.Venue.URL, "VENUE_URL")
	setString(&cfg.Guard.Mode, "GUARD_MODE")
	setString(&cfg.Guard.Redis.Addrs, "REDIS_ADDRS")
	setList(&cfg.Guard.Zookeeper.Servers, "ZK_SERVERS")
	setString(&cfg.Infra.Jaeger.Endpoint, "JAEGER_ENDPOINT")
	setString(&cfg.Infra.Nacos.ServerAddrs, "NACOS_SERVER_ADDRS")
	setString(&cfg.Infra.Nacos.Namespace, "NACOS_NAMESPACE")
	setString(&cfg.Infra.Nacos.Group, "NACOS_GROUP")
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}

// Validate 检查各模式所需的配置是否齐全
func (c *Config) Validate() error {
	if c.App.Port < 0 || c.App.Port > 65535 {
		return errors.Errorf("app.port %d out of range", c.App.Port)
	}

	switch c.Store.Driver {
	case "pebble":
		if c.Store.Pebble.Path == "" {
			return errors.New("store.pebble.path is required")
		}
	case "mysql":
		if c.Store.MySQL.DSN == "" {
			return errors.New("store.mysql.dsn is required")
		}
	default:
		return errors.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	switch c.Dispatch.Mode {
	case "local":
		if c.Dispatch.Workers <= 0 {
			return errors.New("dispatch.workers must be positive")
		}
	case "kafka":
		if len(c.Dispatch.Kafka.Brokers) == 0 || c.Dispatch.Kafka.Topic == "" {
			return errors.New("dispatch.kafka.brokers and topic are required")
		}
	default:
		return errors.Errorf("unknown dispatch.mode %q", c.Dispatch.Mode)
	}

	switch c.Venue.Mode {
	case "simulated":
	case "http":
		if c.Venue.URL == "" && (c.Venue.Service == "" || c.Infra.Nacos.ServerAddrs == "") {
			return errors.New("venue.url, or venue.service with nacos, is required")
		}
	default:
		return errors.Errorf("unknown venue.mode %q", c.Venue.Mode)
	}

	switch c.Guard.Mode {
	case "", "none":
	case "redis":
		if c.Guard.Redis.Addrs == "" {
			return errors.New("guard.redis.addrs is required")
		}
	case "zookeeper":
		if len(c.Guard.Zookeeper.Servers) == 0 {
			return errors.New("guard.zookeeper.servers is required")
		}
	default:
		return errors.Errorf("unknown guard.mode %q", c.Guard.Mode)
	}
	return nil
}
