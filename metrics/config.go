package metrics

// Config 指标系统的配置结构体
// 控制指标系统的启用状态、服务标识和 Prometheus 暴露配置。
//
// 支持 mapstructure 标签，可以从配置文件中加载：
//
//	cfg := &metrics.Config{}
//	loader.UnmarshalKey("metrics", cfg)
//
// 典型配置示例（YAML）：
//
//	metrics:
//	  enabled: true
//	  service_name: "exchange-client"
//	  version: "v1.2.3"
//	  port: 9090
//	  path: "/metrics"
type Config struct {
	// Enabled 是否启用指标收集。
	// 为 false 时，metrics.New() 返回 noop Meter，所有操作都是空操作。
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`

	// ServiceName 服务名称，作为 OTel Resource 的 service.name 属性。
	ServiceName string `mapstructure:"service_name" json:"serviceName" yaml:"serviceName"`

	// Version 服务版本，作为 OTel Resource 的 service.version 属性。
	Version string `mapstructure:"version" json:"version" yaml:"version"`

	// Port Prometheus HTTP 服务器监听的端口。
	// 大于 0 且 Path 非空时启动 HTTP 服务器暴露指标。
	Port int `mapstructure:"port" json:"port" yaml:"port"`

	// Path Prometheus 指标的 HTTP 路径，如 "/metrics"。必须以 "/" 开头。
	Path string `mapstructure:"path" json:"path" yaml:"path"`
}

// NewDefaultConfig 返回生产环境的默认配置：
// 启用指标收集，在 9090 端口的 /metrics 路径暴露 Prometheus 指标。
func NewDefaultConfig(service, version string) *Config {
	return &Config{
		Enabled:     true,
		ServiceName: service,
		Version:     version,
		Port:        9090,
		Path:        "/metrics",
	}
}

// NewDevDefaultConfig 返回开发环境的默认配置，版本固定为 "dev"。
func NewDevDefaultConfig(service string) *Config {
	return &Config{
		Enabled:     true,
		ServiceName: service,
		Version:     "dev",
		Port:        9090,
		Path:        "/metrics",
	}
}
