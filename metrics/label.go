package metrics

// Label 指标标签
// 为指标添加维度信息，支持在监控系统中按维度分组和筛选。
//
// 标签命名使用小写字母和下划线；标签值应该相对稳定，
// 避免使用熔断器键之外的高基数值（如请求 ID）。
//
// 使用示例：
//
//	counter.Inc(ctx, metrics.L("key", "exchange"), metrics.L("outcome", "success"))
type Label struct {
	// Key 标签键，表示维度名称，如 "key"、"kind"、"state"
	Key string

	// Value 标签值，表示该维度的具体取值
	Value string
}

// L 便捷构造函数，创建一个 Label 实例
//
//	metrics.L("kind", "rate_limited")
//
// 等价于 metrics.Label{Key: "kind", Value: "rate_limited"}。
func L(key, value string) Label {
	return Label{
		Key:   key,
		Value: value,
	}
}
