// Package classify owns the operator-configured priority rules and
// assigns severity levels to canonical events.
//
// Rules live in a YAML document per plugin. The document maps event
// kinds to exact-match type tables, where each entry is either a plain
// level (1-4) or a keyword sub-rule block with a default level and
// keyword overrides. A global filter list drops events before any level
// assignment. The whole document is replaced wholesale on reload; a live
// RuleSet is never mutated.
package classify

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Network-Direction/chatbot/internal/types"
)

// SourceConfig carries the per-plugin webhook trust settings embedded in
// the rule document.
type SourceConfig struct {
	AuthHeader    string             `yaml:"auth_header"`
	WebhookSecret types.SecretString `yaml:"webhook_secret"`
}

// KeywordRule is one keyword override inside a sub-rule block. Order is
// declaration order in the document; the first matching keyword wins.
type KeywordRule struct {
	Keyword string
	Level   int
}

// LevelRule is the rule for a single event type: either a plain level or
// a keyword sub-rule block.
type LevelRule struct {
	level    int
	deflt    int
	keywords []KeywordRule
	sub      bool
}

// UnmarshalYAML accepts either a bare integer level or a mapping of the
// form {default: N, keyword: M, ...}. Mapping entries are kept in
// declaration order; "default" is extracted and never matchable.
func (r *LevelRule) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var level int
		if err := node.Decode(&level); err != nil {
			return fmt.Errorf("level rule: %w", err)
		}
		r.level = level
		return nil

	case yaml.MappingNode:
		r.sub = true
		r.deflt = types.LevelCritical // fail-open when no default is given
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			var level int
			if err := node.Content[i+1].Decode(&level); err != nil {
				return fmt.Errorf("sub-rule %q: %w", key, err)
			}
			if key == "default" {
				r.deflt = level
				continue
			}
			r.keywords = append(r.keywords, KeywordRule{Keyword: key, Level: level})
		}
		return nil
	}

	return fmt.Errorf("level rule must be an integer or a mapping, got yaml kind %d", node.Kind)
}

// Resolve returns the level for an event whose free-text field is text.
// For sub-rule blocks the default applies first and the first declared
// keyword found in the text overrides it.
func (r *LevelRule) Resolve(text string) int {
	if !r.sub {
		return r.level
	}
	for _, kw := range r.keywords {
		if strings.Contains(text, kw.Keyword) {
			return kw.Level
		}
	}
	return r.deflt
}

// KindRules is the exact-match table of event type (or audit task
// prefix) to rule for one event kind.
type KindRules map[string]LevelRule

// RuleSet is a complete parsed rule document for one plugin. It is
// immutable once parsed; reloads build a fresh RuleSet and swap it in.
type RuleSet struct {
	Source  SourceConfig
	Filters []string
	Kinds   map[types.EventKind]KindRules
}

// reserved top-level document keys that are not event kinds.
const (
	keyConfig = "config"
	keyFilter = "filter"
)

// UnmarshalYAML decodes the rule document. The config and filter keys
// are fixed; every other top-level key names an event kind.
func (rs *RuleSet) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("rule document must be a mapping")
	}

	rs.Kinds = make(map[types.EventKind]KindRules)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]

		switch key {
		case keyConfig:
			if err := val.Decode(&rs.Source); err != nil {
				return fmt.Errorf("config block: %w", err)
			}
		case keyFilter:
			if err := val.Decode(&rs.Filters); err != nil {
				return fmt.Errorf("filter block: %w", err)
			}
		default:
			var kr KindRules
			if err := val.Decode(&kr); err != nil {
				return fmt.Errorf("kind %q: %w", key, err)
			}
			rs.Kinds[types.EventKind(key)] = kr
		}
	}
	return nil
}

// Parse decodes a rule document from raw YAML.
func Parse(doc []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(doc, &rs); err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid, "parsing rule document", err)
	}
	return &rs, nil
}
