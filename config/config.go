package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	globalConfig Config
	once         sync.Once
)

// MaxListLimit 列表接口单次返回的记录上限
const MaxListLimit = 100

// Config 扁平化配置结构体
type Config struct {
	// 服务器配置
	ServerHost         string        `mapstructure:"server_host"`
	ServerPort         int           `mapstructure:"server_port"`
	ServerReadTimeout  time.Duration `mapstructure:"server_read_timeout"`
	ServerWriteTimeout time.Duration `mapstructure:"server_write_timeout"`
	ServerIdleTimeout  time.Duration `mapstructure:"server_idle_timeout"`
	CorsAllowOrigins   []string      `mapstructure:"cors_allow_origins"`

	// TLS 配置，证书和私钥必须同时提供
	TLSCertFile string `mapstructure:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"`

	// 数据库配置
	DatabaseURL       string        `mapstructure:"database_url"`
	DBMaxOpenConns    int           `mapstructure:"db_max_open_conns"`
	DBMaxIdleConns    int           `mapstructure:"db_max_idle_conns"`
	DBConnMaxLifetime int           `mapstructure:"db_conn_max_lifetime"`
	DBPoolTimeout     time.Duration `mapstructure:"db_pool_timeout"`

	// 目录配置
	UploadDir string `mapstructure:"upload_dir"`
	StaticDir string `mapstructure:"static_dir"`

	// 上传配置
	UploadMaxSizeMB int `mapstructure:"upload_max_size_mb"`

	// 列表配置
	ListLimit int `mapstructure:"list_limit"`

	// 缓存配置
	CacheType          string        `mapstructure:"cache_type"`
	CacheRedisAddr     string        `mapstructure:"cache_redis_addr"`
	CacheRedisPassword string        `mapstructure:"cache_redis_password"`
	CacheRedisDB       int           `mapstructure:"cache_redis_db"`
	CacheTTL           time.Duration `mapstructure:"cache_ttl"`

	// 限流配置
	RateLimitApiRPS     float64       `mapstructure:"rate_limit_api_rps"`
	RateLimitApiBurst   int           `mapstructure:"rate_limit_api_burst"`
	RateLimitExpireTime time.Duration `mapstructure:"rate_limit_expire_time"`

	// Worker 配置
	WorkerCount     int `mapstructure:"worker_count"`
	WorkerQueueSize int `mapstructure:"worker_queue_size"`
}

// InitConfig Initialize configuration
func InitConfig() {
	once.Do(func() {
		loadConfig()
	})
}

func Get() *Config {
	return &globalConfig
}

// loadConfig Core configuration loading
func loadConfig() {
	setDefaults()

	configFile := viper.GetString("config_file_path")
	if configFile == "" {
		configFile = ".env"
		viper.SetConfigType("env")
	}
	viper.SetConfigFile(configFile)

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Info: %s not loaded, using defaults and environment variables\n", configFile)
	} else {
		fmt.Fprintf(os.Stderr, "Info: Loaded configuration from %s\n", configFile)
	}

	viper.AutomaticEnv()
	for _, key := range viper.AllKeys() {
		_ = viper.BindEnv(key)
	}

	if err := viper.Unmarshal(&globalConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: Unable to unmarshal config, %v\n", err)
		os.Exit(1)
	}

	globalConfig.normalize()
}

// setDefaults 设置默认值
func setDefaults() {
	// 服务器配置默认值
	viper.SetDefault("server_host", "127.0.0.1")
	viper.SetDefault("server_port", 8080)
	viper.SetDefault("server_read_timeout", "15s")
	viper.SetDefault("server_write_timeout", "30s")
	viper.SetDefault("server_idle_timeout", "120s")
	viper.SetDefault("cors_allow_origins", []string{})
	viper.SetDefault("tls_cert_file", "")
	viper.SetDefault("tls_key_file", "")

	// 数据库配置默认值
	viper.SetDefault("database_url", "")
	viper.SetDefault("db_max_open_conns", 10)
	viper.SetDefault("db_max_idle_conns", 5)
	viper.SetDefault("db_conn_max_lifetime", 3600)
	viper.SetDefault("db_pool_timeout", "5s")

	// 目录默认值
	viper.SetDefault("upload_dir", "./image")
	viper.SetDefault("static_dir", "./static")

	viper.SetDefault("upload_max_size_mb", 10)
	viper.SetDefault("list_limit", MaxListLimit)

	// 缓存配置默认值
	viper.SetDefault("cache_type", "memory")
	viper.SetDefault("cache_redis_addr", "localhost:6379")
	viper.SetDefault("cache_redis_password", "")
	viper.SetDefault("cache_redis_db", 0)
	viper.SetDefault("cache_ttl", "10m")

	// 限流配置默认值
	viper.SetDefault("rate_limit_api_rps", 30.0)
	viper.SetDefault("rate_limit_api_burst", 60)
	viper.SetDefault("rate_limit_expire_time", "10m")

	// Worker 配置默认值
	viper.SetDefault("worker_count", 0) // 0 表示使用默认值
	viper.SetDefault("worker_queue_size", 256)
}

// normalize 修正越界或缺省的配置项
func (c *Config) normalize() {
	// WorkerCount: -1 = 使用 CPU 线程数, 0 = 使用默认值 (max(2, CPU核心数)), >0 = 使用指定值
	switch {
	case c.WorkerCount < 0:
		c.WorkerCount = runtime.GOMAXPROCS(0)
	case c.WorkerCount == 0:
		c.WorkerCount = getCpus()
	}

	if c.ListLimit <= 0 || c.ListLimit > MaxListLimit {
		c.ListLimit = MaxListLimit
	}
	if c.DBMaxOpenConns <= 0 {
		c.DBMaxOpenConns = 10
	}
	if c.DBPoolTimeout <= 0 {
		c.DBPoolTimeout = 5 * time.Second
	}
	c.CacheType = strings.ToLower(strings.TrimSpace(c.CacheType))
}

// Validate 检查启动所必需的配置，返回错误时进程应当退出
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("DATABASE_URL must be set")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("tls_cert_file and tls_key_file must be set together")
	}
	if c.UploadDir == "" {
		return errors.New("upload_dir must not be empty")
	}
	switch c.CacheType {
	case "", "none", "memory", "redis":
	default:
		return fmt.Errorf("unsupported cache_type: %s", c.CacheType)
	}
	return nil
}

// TLSEnabled 是否启用 TLS
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// Addr 返回监听地址，格式为 "host:port"
func (c *Config) Addr() string {
	host := c.ServerHost
	if host == "" {
		host = "0.0.0.0"
	}
	port := c.ServerPort
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// UploadMaxBytes 单次上传请求体允许的最大字节数
func (c *Config) UploadMaxBytes() int64 {
	if c.UploadMaxSizeMB <= 0 {
		return 10 << 20
	}
	return int64(c.UploadMaxSizeMB) << 20
}

// getCpus 获取默认线程数量
func getCpus() int {
	n := runtime.GOMAXPROCS(0)
	if n < 2 {
		return 2
	}
	return n
}
