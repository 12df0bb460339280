package templates

import (
	"strings"

	"github.com/conneroisu/unchained/internal/textparse"
)

// OperationCall is one parsed operation region: a name, its parameters and
// the raw text of the optional child block. Children are not evaluated at
// parse time.
type OperationCall struct {
	Name        string
	Parameters  []string
	Children    string
	HasChildren bool
}

// KeyValue is a key=value parameter.
type KeyValue struct {
	Key   string
	Value string
}

// ParseOperation parses the text between an opening and closing marker.
// It reports false when the region holds no operation name.
func ParseOperation(content string) (*OperationCall, bool) {
	call := &OperationCall{}

	head := content
	if m, ok := textparse.BetweenConnected(content, "{", "}"); ok {
		call.Children = m.Content
		call.HasChildren = true
		head = content[:m.From] + " " + content[m.To+1:]
	}

	fields := strings.Fields(head)
	if len(fields) == 0 {
		return nil, false
	}

	call.Name = fields[0]
	call.Parameters = fields[1:]

	return call, true
}

// KeyValues returns the parameters written as key=value, in order.
func (c *OperationCall) KeyValues() []KeyValue {
	var pairs []KeyValue
	for _, p := range c.Parameters {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			continue
		}
		pairs = append(pairs, KeyValue{Key: key, Value: value})
	}

	return pairs
}

// Positional returns the parameters that are not key=value pairs.
func (c *OperationCall) Positional() []string {
	var out []string
	for _, p := range c.Parameters {
		if key, _, ok := strings.Cut(p, "="); ok && key != "" {
			continue
		}
		out = append(out, p)
	}

	return out
}
