package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestNew 测试创建配置加载器
func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{
			name:    "default options",
			opts:    []Option{},
			wantErr: false,
		},
		{
			name: "with config name",
			opts: []Option{
				WithConfigName("gateway"),
			},
			wantErr: false,
		},
		{
			name: "with config path",
			opts: []Option{
				WithConfigPath("./test-config"),
			},
			wantErr: false,
		},
		{
			name: "with config paths",
			opts: []Option{
				WithConfigPaths("./config", "./test"),
			},
			wantErr: false,
		},
		{
			name: "with config type",
			opts: []Option{
				WithConfigType("json"),
			},
			wantErr: false,
		},
		{
			name: "with env prefix",
			opts: []Option{
				WithEnvPrefix("TEST"),
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, err := New(tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && loader == nil {
				t.Error("New() returned nil loader")
			}
		})
	}
}

// TestMustLoad 测试 MustLoad 函数
func TestMustLoad(t *testing.T) {
	// 创建临时配置文件
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "test.yaml")

	configContent := `
app:
  name: "exchange-client"
`
	err := os.WriteFile(configFile, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	// 正常情况应该不 panic
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("MustLoad() panicked unexpectedly: %v", r)
		}
	}()

	loader := MustLoad(
		WithConfigName("test"),
		WithConfigPaths(tmpDir),
		WithConfigType("yaml"),
	)

	if loader == nil {
		t.Error("MustLoad() returned nil loader")
	}
}

// TestMustLoadPanic 测试 MustLoad 在错误时 panic
func TestMustLoadPanic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustLoad() should have panicked")
		}
	}()

	// 使用不存在的配置路径，加载得到空配置，验证失败并 panic
	MustLoad(
		WithConfigName("nonexistent"),
		WithConfigPaths("/nonexistent/path"),
	)
}

// TestLoaderInterface 测试 Loader 接口的完整实现
func TestLoaderInterface(t *testing.T) {
	// 创建临时配置文件
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "test.yaml")

	configContent := `
app:
  name: "exchange-client"
  version: "1.0.0"
  debug: true
retry:
  max_attempts: 5
  initial_delay: "100ms"
  multiplier: 2.0
breaker:
  failure_threshold: 5
  reset_timeout: "30s"
  success_threshold: 3
`

	err := os.WriteFile(configFile, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	ctx := context.Background()
	loader, err := New(
		WithConfigName("test"),
		WithConfigPaths(tmpDir),
		WithConfigType("yaml"),
	)
	if err != nil {
		t.Fatalf("Failed to create loader: %v", err)
	}

	// 测试 Load
	if err := loader.Load(ctx); err != nil {
		t.Errorf("Load() error = %v", err)
		return
	}

	// 测试 Get
	if appName := loader.Get("app.name"); appName != "exchange-client" {
		t.Errorf("Get(app.name) = %v, want exchange-client", appName)
	}

	if maxAttempts := loader.Get("retry.max_attempts"); maxAttempts != 5 {
		t.Errorf("Get(retry.max_attempts) = %v, want 5", maxAttempts)
	}

	// 测试 Unmarshal
	type AppConfig struct {
		App struct {
			Name    string `mapstructure:"name"`
			Version string `mapstructure:"version"`
			Debug   bool   `mapstructure:"debug"`
		} `mapstructure:"app"`
		Retry struct {
			MaxAttempts  int           `mapstructure:"max_attempts"`
			InitialDelay time.Duration `mapstructure:"initial_delay"`
			Multiplier   float64       `mapstructure:"multiplier"`
		} `mapstructure:"retry"`
		Breaker struct {
			FailureThreshold int           `mapstructure:"failure_threshold"`
			ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
			SuccessThreshold int           `mapstructure:"success_threshold"`
		} `mapstructure:"breaker"`
	}

	var cfg AppConfig
	if err := loader.Unmarshal(&cfg); err != nil {
		t.Errorf("Unmarshal() error = %v", err)
		return
	}

	if cfg.App.Name != "exchange-client" {
		t.Errorf("Unmarshal() app.name = %v, want exchange-client", cfg.App.Name)
	}

	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("Unmarshal() retry.max_attempts = %v, want 5", cfg.Retry.MaxAttempts)
	}

	if cfg.Retry.InitialDelay != 100*time.Millisecond {
		t.Errorf("Unmarshal() retry.initial_delay = %v, want 100ms", cfg.Retry.InitialDelay)
	}

	// 测试 UnmarshalKey
	type BreakerConfig struct {
		FailureThreshold int           `mapstructure:"failure_threshold"`
		ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
		SuccessThreshold int           `mapstructure:"success_threshold"`
	}

	var breakerCfg BreakerConfig
	if err := loader.UnmarshalKey("breaker", &breakerCfg); err != nil {
		t.Errorf("UnmarshalKey() error = %v", err)
		return
	}

	if breakerCfg.FailureThreshold != 5 {
		t.Errorf("UnmarshalKey() breaker.failure_threshold = %v, want 5", breakerCfg.FailureThreshold)
	}

	if breakerCfg.ResetTimeout != 30*time.Second {
		t.Errorf("UnmarshalKey() breaker.reset_timeout = %v, want 30s", breakerCfg.ResetTimeout)
	}

	// 测试 Validate
	if err := loader.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

// TestWatch 测试配置监听功能
func TestWatch(t *testing.T) {
	// 创建临时配置文件
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "test.yaml")

	configContent := `
breaker:
  failure_threshold: 5
`

	err := os.WriteFile(configFile, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	loader, err := New(
		WithConfigName("test"),
		WithConfigPaths(tmpDir),
		WithConfigType("yaml"),
	)
	if err != nil {
		t.Fatalf("Failed to create loader: %v", err)
	}

	if err := loader.Load(ctx); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// 监听熔断阈值配置项
	ch, err := loader.Watch(ctx, "breaker.failure_threshold")
	if err != nil {
		t.Errorf("Watch() error = %v", err)
		return
	}

	// 修改配置文件
	newConfigContent := `
breaker:
  failure_threshold: 10
`

	err = os.WriteFile(configFile, []byte(newConfigContent), 0644)
	if err != nil {
		t.Fatalf("Failed to update config file: %v", err)
	}

	// 等待配置变更事件
	select {
	case event := <-ch:
		if event.Key != "breaker.failure_threshold" {
			t.Errorf("Watch() event.key = %v, want breaker.failure_threshold", event.Key)
		}
		if event.Value != 10 {
			t.Errorf("Watch() event.value = %v, want 10", event.Value)
		}
		if event.OldValue != 5 {
			t.Errorf("Watch() event.oldValue = %v, want 5", event.OldValue)
		}
		if event.Source != "file" {
			t.Errorf("Watch() event.source = %v, want file", event.Source)
		}
	case <-time.After(5 * time.Second):
		t.Error("Watch() timeout waiting for config change event")
	case <-ctx.Done():
		t.Error("Watch() context cancelled")
	}
}

// TestDefaultOptions 测试默认选项
func TestDefaultOptions(t *testing.T) {
	opts := defaultOptions()

	if opts.Name != "config" {
		t.Errorf("defaultOptions().Name = %v, want config", opts.Name)
	}

	if len(opts.Paths) != 2 || opts.Paths[0] != "." || opts.Paths[1] != "./config" {
		t.Errorf("defaultOptions().Paths = %v, want [., ./config]", opts.Paths)
	}

	if opts.FileType != "yaml" {
		t.Errorf("defaultOptions().FileType = %v, want yaml", opts.FileType)
	}

	if opts.EnvPrefix != "AEGIS" {
		t.Errorf("defaultOptions().EnvPrefix = %v, want AEGIS", opts.EnvPrefix)
	}

	if opts.Logger == nil {
		t.Error("defaultOptions().Logger should not be nil")
	}
}

// TestOptionsApply 测试选项应用
func TestOptionsApply(t *testing.T) {
	opts := defaultOptions()

	// 应用各种选项
	WithConfigName("gateway")(opts)
	WithConfigPath("./test")(opts)
	WithConfigType("json")(opts)
	WithEnvPrefix("test")(opts)

	if opts.Name != "gateway" {
		t.Errorf("After WithConfigName, Name = %v, want gateway", opts.Name)
	}

	if len(opts.Paths) != 3 || opts.Paths[2] != "./test" {
		t.Errorf("After WithConfigPath, Paths = %v, want [., ./config, ./test]", opts.Paths)
	}

	if opts.FileType != "json" {
		t.Errorf("After WithConfigType, FileType = %v, want json", opts.FileType)
	}

	// 前缀自动转为大写
	if opts.EnvPrefix != "TEST" {
		t.Errorf("After WithEnvPrefix, EnvPrefix = %v, want TEST", opts.EnvPrefix)
	}
}

// TestWithConfigPaths 测试 WithConfigPaths 覆盖默认路径
func TestWithConfigPaths(t *testing.T) {
	opts := defaultOptions()

	// 覆盖默认路径
	WithConfigPaths("/etc/app", "./local")(opts)

	if len(opts.Paths) != 2 || opts.Paths[0] != "/etc/app" || opts.Paths[1] != "./local" {
		t.Errorf("WithConfigPaths() Paths = %v, want [/etc/app, ./local]", opts.Paths)
	}
}

// TestEnvironmentOverride 测试环境变量覆盖配置文件
func TestEnvironmentOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "test.yaml")

	configContent := `
retry:
  max_attempts: 3
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	t.Setenv("AEGIS_RETRY_MAX_ATTEMPTS", "7")

	loader, err := New(
		WithConfigName("test"),
		WithConfigPaths(tmpDir),
		WithConfigType("yaml"),
	)
	if err != nil {
		t.Fatalf("Failed to create loader: %v", err)
	}
	if err := loader.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// 环境变量优先于文件
	if got := loader.Get("retry.max_attempts"); got != "7" {
		t.Errorf("Get(retry.max_attempts) = %v (%T), want 7 from env", got, got)
	}
}
