package config

import "context"

// New 创建配置加载器，不加载配置。
// 调用方随后通过 Loader.Load 完成实际加载。
func New(opts ...Option) (Loader, error) {
	return newLoader(opts...)
}

// MustLoad 创建配置加载器并立即加载，出错时 panic。仅用于初始化阶段。
//
//	loader := config.MustLoad(
//		config.WithConfigName("gateway"),
//		config.WithConfigPaths("./config"),
//	)
func MustLoad(opts ...Option) Loader {
	l, err := New(opts...)
	if err != nil {
		panic("config: create loader: " + err.Error())
	}
	if err := l.Load(context.Background()); err != nil {
		panic("config: load: " + err.Error())
	}
	return l
}
