package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/zjrosen/idosync/internal/idos"
)

// taskData holds the fields of a task to be written.
type taskData struct {
	key    string
	names  []string
	values map[string]any
	raw    json.RawMessage
}

// defaultTask returns a task with only a title, named after its key.
func defaultTask(key string) taskData {
	t := taskData{key: key, values: make(map[string]any)}
	t.set("title", "Task "+key)
	return t
}

func (t *taskData) set(name string, value any) {
	if _, ok := t.values[name]; !ok {
		t.names = append(t.names, name)
	}
	t.values[name] = value
}

// document encodes the task with fields in the order they were set.
func (t taskData) document() json.RawMessage {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range t.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(name)
		v, err := json.Marshal(t.values[name])
		if err != nil {
			panic(fmt.Sprintf("testutil: field %s: %v", name, err))
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// TaskOption configures a task during builder setup.
type TaskOption func(*taskData)

// ID sets the legacy id field. Any JSON value is accepted.
func ID(v any) TaskOption {
	return func(t *taskData) { t.set(idos.FieldID, v) }
}

// IDOS sets the stored idOS field. Any JSON value is accepted.
func IDOS(v any) TaskOption {
	return func(t *taskData) { t.set(idos.FieldIDOS, v) }
}

// Title sets the title.
func Title(s string) TaskOption {
	return func(t *taskData) { t.set("title", s) }
}

// Field sets an arbitrary field.
func Field(name string, v any) TaskOption {
	return func(t *taskData) { t.set(name, v) }
}

// Raw stores value verbatim instead of an object, e.g. a scalar.
func Raw(value string) TaskOption {
	return func(t *taskData) { t.raw = json.RawMessage(value) }
}
