// Package serializer 提供幂等结果缓存的序列化编解码。
//
// 支持两种格式：
//   - json: 标准库 JSON，可读性好、跨语言兼容性最好（默认）
//   - msgpack: MessagePack 二进制编码，体积更小、编解码更快
//
// 缓存的结果要跨进程、跨重启读取，格式一旦选定就不应更换：
// 用 msgpack 写入的结果无法用 json 读回。
package serializer

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ceyewan/aegis/xerrors"
)

// 序列化器类型
const (
	TypeJSON    = "json"
	TypeMsgpack = "msgpack"
)

// ErrUnsupported 不支持的序列化器类型
var ErrUnsupported = xerrors.New("serializer: unsupported type")

// Serializer 定义序列化接口
type Serializer interface {
	Marshal(value any) ([]byte, error)
	Unmarshal(data []byte, dest any) error
}

// JSONSerializer JSON 序列化器
type JSONSerializer struct{}

func (j *JSONSerializer) Marshal(value any) ([]byte, error) {
	return json.Marshal(value)
}

func (j *JSONSerializer) Unmarshal(data []byte, dest any) error {
	return json.Unmarshal(data, dest)
}

// MessagePackSerializer MessagePack 序列化器
type MessagePackSerializer struct{}

func (m *MessagePackSerializer) Marshal(value any) ([]byte, error) {
	return msgpack.Marshal(value)
}

func (m *MessagePackSerializer) Unmarshal(data []byte, dest any) error {
	return msgpack.Unmarshal(data, dest)
}

// New 创建序列化器，空字符串等价于 TypeJSON。
func New(typ string) (Serializer, error) {
	switch typ {
	case TypeJSON, "":
		return &JSONSerializer{}, nil
	case TypeMsgpack:
		return &MessagePackSerializer{}, nil
	default:
		return nil, xerrors.Wrapf(ErrUnsupported, "type %q", typ)
	}
}
