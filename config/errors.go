package config

import "github.com/ceyewan/aegis/xerrors"

// ErrValidationFailed 验证失败
var ErrValidationFailed = xerrors.New("configuration validation failed")

// IsNotFound 检查错误是否为配置未找到
func IsNotFound(err error) bool {
	return xerrors.Is(err, xerrors.ErrNotFound)
}

// IsInvalidInput 检查错误是否为配置格式无效或验证失败
func IsInvalidInput(err error) bool {
	return xerrors.Is(err, xerrors.ErrInvalidInput)
}

// WrapValidationError 包装验证错误，使其可被 IsInvalidInput 识别
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return xerrors.Wrapf(xerrors.ErrInvalidInput, "validation failed: %v", err)
}

// WrapLoadError 包装加载错误，保留原始错误链
func WrapLoadError(err error, message string) error {
	if err == nil {
		return nil
	}
	return xerrors.Wrapf(err, "failed to load config: %s", message)
}
