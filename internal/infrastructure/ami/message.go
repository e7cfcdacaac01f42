package ami

import (
	"bufio"
	"errors"
	"fmt"
	"net/textproto"
	"sort"
	"strings"
)

// Message 一条 AMI 消息（动作、响应或事件），键统一按小写存储
type Message map[string]string

// Get 读取字段，键不区分大小写
func (m Message) Get(key string) string {
	return m[strings.ToLower(key)]
}

// Set 写入字段
func (m Message) Set(key, value string) {
	m[strings.ToLower(key)] = value
}

// IsEvent 是否为事件消息
func (m Message) IsEvent() bool {
	return m.Get("Event") != ""
}

// IsResponse 是否为动作响应
func (m Message) IsResponse() bool {
	return m.Get("Response") != ""
}

// ActionID 返回消息携带的关联ID
func (m Message) ActionID() string {
	return m.Get("ActionID")
}

// IsSuccess 响应是否成功
func (m Message) IsSuccess() bool {
	switch strings.ToLower(m.Get("Response")) {
	case "success", "follows", "goodbye":
		return true
	}
	return false
}

var errEmptyMessage = errors.New("ami: empty message")

// readMessage 读取以空行结束的一条消息
func readMessage(r *textproto.Reader) (Message, error) {
	msg := Message{}
	for {
		line, err := r.ReadLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			if len(msg) == 0 {
				// 连续的空行直接跳过
				continue
			}
			return msg, nil
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			// 非 Key: Value 行（例如命令输出）按原样保留
			msg.Set("Output", strings.TrimSpace(msg.Get("Output")+"\n"+line))
			continue
		}
		key = strings.TrimSpace(key)
		if _, exists := msg[strings.ToLower(key)]; exists {
			continue
		}
		msg.Set(key, strings.TrimSpace(value))
	}
}

// writeAction 写出一个动作；固定字段在前，其余参数按名称排序
func writeAction(w *bufio.Writer, name, actionID string, params map[string]string) error {
	if name == "" {
		return errEmptyMessage
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Action: %s\r\n", name)
	if actionID != "" {
		fmt.Fprintf(&b, "ActionID: %s\r\n", actionID)
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.EqualFold(k, "Action") || strings.EqualFold(k, "ActionID") {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\r\n", k, sanitize(params[k]))
	}
	b.WriteString("\r\n")

	if _, err := w.WriteString(b.String()); err != nil {
		return err
	}
	return w.Flush()
}

// sanitize 去掉参数值里的换行，防止注入额外字段
func sanitize(v string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(v)
}
