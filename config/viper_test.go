package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoaderLoad 测试配置加载的完整流程和优先级
func TestLoaderLoad(t *testing.T) {
	tmpDir := t.TempDir()

	// 基础配置文件
	baseConfig := filepath.Join(tmpDir, "config.yaml")
	baseContent := `
app:
  name: "base-app"
  version: "1.0.0"
  debug: false
retry:
  max_attempts: 3
  initial_delay: "100ms"
breaker:
  failure_threshold: 5
`

	// 开发环境配置文件
	devConfig := filepath.Join(tmpDir, "config.dev.yaml")
	devContent := `
app:
  debug: true
breaker:
  failure_threshold: 2
`

	// .env 文件
	envFile := filepath.Join(tmpDir, ".env")
	envContent := `
AEGIS_CLOG_LEVEL=debug
`

	if err := os.WriteFile(baseConfig, []byte(baseContent), 0644); err != nil {
		t.Fatalf("Failed to create base config: %v", err)
	}
	if err := os.WriteFile(devConfig, []byte(devContent), 0644); err != nil {
		t.Fatalf("Failed to create dev config: %v", err)
	}
	if err := os.WriteFile(envFile, []byte(envContent), 0644); err != nil {
		t.Fatalf("Failed to create .env file: %v", err)
	}

	t.Setenv("AEGIS_ENV", "dev")
	t.Setenv("AEGIS_APP_NAME", "env-app")
	t.Setenv("AEGIS_RETRY_MAX_ATTEMPTS", "7")

	ctx := context.Background()
	loader, err := New(
		WithConfigName("config"),
		WithConfigPaths(tmpDir),
		WithConfigType("yaml"),
		WithEnvPrefix("AEGIS"),
	)
	if err != nil {
		t.Fatalf("Failed to create loader: %v", err)
	}

	if err := loader.Load(ctx); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// 1. 环境变量（最高优先级）
	if appName := loader.Get("app.name"); appName != "env-app" {
		t.Errorf("app.name from env = %v, want env-app", appName)
	}

	if maxAttempts := loader.Get("retry.max_attempts"); maxAttempts != "7" {
		t.Errorf("retry.max_attempts from env = %v, want 7", maxAttempts)
	}

	// 2. .env 文件（高优先级，通过环境变量机制生效）
	if logLevel := loader.Get("clog.level"); logLevel != "debug" {
		t.Errorf("clog.level from .env = %v, want debug", logLevel)
	}

	// 3. 环境特定配置（中等优先级）
	if appDebug := loader.Get("app.debug"); appDebug != true {
		t.Errorf("app.debug from dev config = %v, want true", appDebug)
	}

	if threshold := loader.Get("breaker.failure_threshold"); threshold != 2 {
		t.Errorf("breaker.failure_threshold from dev config = %v, want 2", threshold)
	}

	// 4. 基础配置（最低优先级）
	if appVersion := loader.Get("app.version"); appVersion != "1.0.0" {
		t.Errorf("app.version from base config = %v, want 1.0.0", appVersion)
	}

	if initialDelay := loader.Get("retry.initial_delay"); initialDelay != "100ms" {
		t.Errorf("retry.initial_delay from base config = %v, want 100ms", initialDelay)
	}
}

// TestLoaderValidate 测试配置验证
func TestLoaderValidate(t *testing.T) {
	tests := []struct {
		name        string
		setupLoader func() (Loader, error)
		wantErr     bool
	}{
		{
			name: "valid config",
			setupLoader: func() (Loader, error) {
				tmpDir := t.TempDir()
				configFile := filepath.Join(tmpDir, "config.yaml")
				content := `app: {name: test}`
				if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
					return nil, err
				}
				return New(
					WithConfigName("config"),
					WithConfigPaths(tmpDir),
				)
			},
			wantErr: false,
		},
		{
			name: "empty config",
			setupLoader: func() (Loader, error) {
				return New(
					WithConfigName("nonexistent"),
					WithConfigPaths("/nonexistent"),
					WithEnvPrefix("AEGISTESTEMPTY"),
				)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, err := tt.setupLoader()
			if err != nil {
				t.Fatalf("Failed to setup loader: %v", err)
			}

			ctx := context.Background()
			if err := loader.Load(ctx); err != nil {
				if !tt.wantErr {
					t.Errorf("Load() error = %v, want no error", err)
				}
				return
			}

			if err := loader.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestLoaderWatchMultipleKeys 测试同时监听多个配置项
func TestLoaderWatchMultipleKeys(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "watch-test.yaml")
	initialContent := `
breaker:
  failure_threshold: 5
  reset_timeout: "30s"
`

	if err := os.WriteFile(configFile, []byte(initialContent), 0644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	loader, err := New(
		WithConfigName("watch-test"),
		WithConfigPaths(tmpDir),
		WithConfigType("yaml"),
	)
	if err != nil {
		t.Fatalf("Failed to create loader: %v", err)
	}

	if err := loader.Load(ctx); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	thresholdCh, err := loader.Watch(ctx, "breaker.failure_threshold")
	if err != nil {
		t.Fatalf("Failed to watch breaker.failure_threshold: %v", err)
	}

	timeoutCh, err := loader.Watch(ctx, "breaker.reset_timeout")
	if err != nil {
		t.Fatalf("Failed to watch breaker.reset_timeout: %v", err)
	}

	// 修改配置文件
	updatedContent := `
breaker:
  failure_threshold: 10
  reset_timeout: "60s"
`

	if err := os.WriteFile(configFile, []byte(updatedContent), 0644); err != nil {
		t.Fatalf("Failed to update config file: %v", err)
	}

	eventCount := 0
	timeout := time.After(5 * time.Second)

	for eventCount < 2 {
		select {
		case event := <-thresholdCh:
			if event.Key != "breaker.failure_threshold" {
				t.Errorf("Event key = %v, want breaker.failure_threshold", event.Key)
			}
			if event.Value != 10 {
				t.Errorf("Event value = %v, want 10", event.Value)
			}
			if event.OldValue != 5 {
				t.Errorf("Event oldValue = %v, want 5", event.OldValue)
			}
			if event.Source != "file" {
				t.Errorf("Event source = %v, want file", event.Source)
			}
			eventCount++

		case event := <-timeoutCh:
			if event.Key != "breaker.reset_timeout" {
				t.Errorf("Event key = %v, want breaker.reset_timeout", event.Key)
			}
			if event.Value != "60s" {
				t.Errorf("Event value = %v, want 60s", event.Value)
			}
			if event.OldValue != "30s" {
				t.Errorf("Event oldValue = %v, want 30s", event.OldValue)
			}
			eventCount++

		case <-timeout:
			t.Errorf("Timeout waiting for config change events")
			return

		case <-ctx.Done():
			t.Errorf("Context cancelled while waiting for events")
			return
		}
	}
}

// TestLoaderWatchCancel 测试监听取消后通道被关闭
func TestLoaderWatchCancel(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "cancel-test.yaml")
	content := `retry: {max_attempts: 3}`

	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}

	ctx := context.Background()
	loader, err := New(
		WithConfigName("cancel-test"),
		WithConfigPaths(tmpDir),
	)
	if err != nil {
		t.Fatalf("Failed to create loader: %v", err)
	}

	if err := loader.Load(ctx); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	watchCtx, cancel := context.WithCancel(context.Background())

	ch, err := loader.Watch(watchCtx, "retry.max_attempts")
	if err != nil {
		t.Fatalf("Failed to watch: %v", err)
	}

	cancel()

	// 取消后通道应该被关闭
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Watch channel should be closed after context cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Error("Timeout waiting for watch channel to close")
	}
}

// TestLoaderMultipleWatches 测试同一配置项的多个监听器
func TestLoaderMultipleWatches(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "multi-watch.yaml")
	content := `retry: {max_attempts: 3}`

	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}

	ctx := context.Background()
	loader, err := New(
		WithConfigName("multi-watch"),
		WithConfigPaths(tmpDir),
	)
	if err != nil {
		t.Fatalf("Failed to create loader: %v", err)
	}

	if err := loader.Load(ctx); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	watchCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch1, err := loader.Watch(watchCtx, "retry.max_attempts")
	if err != nil {
		t.Fatalf("Failed to create watch 1: %v", err)
	}

	ch2, err := loader.Watch(watchCtx, "retry.max_attempts")
	if err != nil {
		t.Fatalf("Failed to create watch 2: %v", err)
	}

	updatedContent := `retry: {max_attempts: 9}`
	if err := os.WriteFile(configFile, []byte(updatedContent), 0644); err != nil {
		t.Fatalf("Failed to update config: %v", err)
	}

	// 两个监听器都应该收到事件
	eventCount := 0
	timeout := time.After(3 * time.Second)

	for eventCount < 2 {
		select {
		case event := <-ch1:
			if event.Value != 9 {
				t.Errorf("ch1 event value = %v, want 9", event.Value)
			}
			eventCount++

		case event := <-ch2:
			if event.Value != 9 {
				t.Errorf("ch2 event value = %v, want 9", event.Value)
			}
			eventCount++

		case <-timeout:
			t.Errorf("Timeout waiting for events from both channels")
			return

		case <-watchCtx.Done():
			t.Errorf("Context cancelled while waiting")
			return
		}
	}
}
