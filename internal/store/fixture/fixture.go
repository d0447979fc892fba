// Package fixture seeds a store from a YAML file shaped like the database:
//
//	users:
//	  <owner>:
//	    email: someone@example.com
//	    tasks:
//	      <key>: {id: "X Y", title: "..."}
//
// Mapping order in the file becomes child order in the store.
package fixture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/idosync/internal/log"
	"github.com/zjrosen/idosync/internal/store"
)

const tasksField = "tasks"

// Stats counts what a load wrote.
type Stats struct {
	Owners int
	Tasks  int
}

// LoadFile seeds dst from the fixture at path.
func LoadFile(ctx context.Context, path string, dst store.Putter) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("opening fixture: %w", err)
	}
	defer func() { _ = f.Close() }()

	stats, err := Load(ctx, f, dst)
	if err != nil {
		return stats, fmt.Errorf("%s: %w", path, err)
	}
	return stats, nil
}

// Load seeds dst from the fixture read from r. Each owner is stored under
// the owners root without its tasks; each task is stored under the owner's
// tasks path.
func Load(ctx context.Context, r io.Reader, dst store.Putter) (Stats, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return Stats{}, nil
		}
		return Stats{}, fmt.Errorf("parsing fixture: %w", err)
	}

	root := resolve(&doc)
	if root.Kind != yaml.MappingNode {
		return Stats{}, fmt.Errorf("line %d: fixture must be a mapping", root.Line)
	}

	users := lookup(root, store.OwnersRoot)
	if users == nil {
		return Stats{}, fmt.Errorf("fixture has no %q mapping", store.OwnersRoot)
	}
	if users.Kind != yaml.MappingNode {
		return Stats{}, fmt.Errorf("line %d: %q must be a mapping", users.Line, store.OwnersRoot)
	}

	var stats Stats
	for i := 0; i+1 < len(users.Content); i += 2 {
		owner := users.Content[i].Value
		n, err := loadOwner(ctx, dst, owner, resolve(users.Content[i+1]))
		if err != nil {
			return stats, fmt.Errorf("owner %s: %w", owner, err)
		}
		stats.Owners++
		stats.Tasks += n
	}

	log.Info(log.CatStore, "Loaded fixture", "owners", stats.Owners, "tasks", stats.Tasks)
	return stats, nil
}

func loadOwner(ctx context.Context, dst store.Putter, owner string, node *yaml.Node) (int, error) {
	var tasks *yaml.Node
	fields := &yaml.Node{Kind: yaml.MappingNode}
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == tasksField {
				tasks = resolve(node.Content[i+1])
				continue
			}
			fields.Content = append(fields.Content, node.Content[i], node.Content[i+1])
		}
	}

	ownerDoc, err := toJSON(fields)
	if err != nil {
		return 0, err
	}
	if err := dst.Put(ctx, store.OwnersRoot, owner, ownerDoc); err != nil {
		return 0, err
	}

	if tasks == nil {
		return 0, nil
	}
	path := store.TasksPath(owner)
	count := 0
	switch tasks.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(tasks.Content); i += 2 {
			if err := putTask(ctx, dst, path, tasks.Content[i].Value, tasks.Content[i+1]); err != nil {
				return count, err
			}
			count++
		}
	case yaml.SequenceNode:
		// Lists behave like database arrays: index keys, null entries absent.
		for i, item := range tasks.Content {
			if isNull(item) {
				continue
			}
			if err := putTask(ctx, dst, path, strconv.Itoa(i), item); err != nil {
				return count, err
			}
			count++
		}
	case yaml.ScalarNode:
		if !isNull(tasks) {
			return 0, fmt.Errorf("line %d: tasks must be a mapping or a list", tasks.Line)
		}
	}
	return count, nil
}

func putTask(ctx context.Context, dst store.Putter, path, key string, node *yaml.Node) error {
	value, err := toJSON(node)
	if err != nil {
		return fmt.Errorf("task %s: %w", key, err)
	}
	if err := dst.Put(ctx, path, key, value); err != nil {
		return fmt.Errorf("task %s: %w", key, err)
	}
	return nil
}

// toJSON encodes a YAML node as JSON, keeping mapping key order.
func toJSON(node *yaml.Node) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, node); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, node *yaml.Node) error {
	node = resolve(node)
	switch node.Kind {
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(node.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(node.Content[i].Value)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeJSON(buf, node.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, item := range node.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case yaml.ScalarNode:
		var v any
		if err := node.Decode(&v); err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		buf.Write(encoded)
	default:
		buf.WriteString("null")
	}
	return nil
}

func resolve(node *yaml.Node) *yaml.Node {
	for node != nil {
		switch node.Kind {
		case yaml.DocumentNode:
			if len(node.Content) == 0 {
				return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null"}
			}
			node = node.Content[0]
		case yaml.AliasNode:
			node = node.Alias
		default:
			return node
		}
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null"}
}

func lookup(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return resolve(mapping.Content[i+1])
		}
	}
	return nil
}

func isNull(node *yaml.Node) bool {
	node = resolve(node)
	return node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null"
}
