package schedule

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Entry is one raw template row. Key is a "YYYY-MM-DD" date (standard), a
// free-form date-like string (rolling) or a weekday index 0-6 (evergreen).
type Entry struct {
	Key   string
	Times []string
}

// Template is the raw schedule input. Order matters: rolling and standard
// schedules keep it, and times within an entry are never re-sorted.
type Template []Entry

// UnmarshalYAML decodes a mapping while keeping document order, which a Go
// map would lose. Values may be a sequence of times or a single time.
func (t *Template) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null" {
		*t = nil
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: schedule must be a mapping", n.Line)
	}

	out := make(Template, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: schedule key must be a scalar", k.Line)
		}

		e := Entry{Key: k.Value}
		switch v.Kind {
		case yaml.ScalarNode:
			if v.ShortTag() != "!!null" {
				e.Times = []string{v.Value}
			}
		case yaml.SequenceNode:
			for _, item := range v.Content {
				if item.Kind != yaml.ScalarNode {
					return fmt.Errorf("line %d: time must be a scalar", item.Line)
				}
				e.Times = append(e.Times, item.Value)
			}
		default:
			return fmt.Errorf("line %d: times for %q must be a list", v.Line, k.Value)
		}
		out = append(out, e)
	}
	*t = out
	return nil
}

// MarshalYAML writes the template back as an ordered mapping with quoted
// values so "08:00" survives a round trip as a string.
func (t Template) MarshalYAML() (any, error) {
	m := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range t {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, v := range e.Times {
			seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: v, Style: yaml.DoubleQuotedStyle})
		}
		m.Content = append(m.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: e.Key},
			seq,
		)
	}
	return m, nil
}
