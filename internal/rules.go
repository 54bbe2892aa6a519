package internal

import (
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Rule routes matching events to one or more topics.
type Rule struct {
	When    string   `yaml:"when"`
	Emit    EmitList `yaml:"emit"`
	Drivers []string `yaml:"drivers"`
}

// EmitList accepts either a single topic or a list of topics.
type EmitList []string

func (e *EmitList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*e = EmitList{node.Value}
		return nil
	case yaml.SequenceNode:
		var topics []string
		if err := node.Decode(&topics); err != nil {
			return err
		}
		*e = topics
		return nil
	default:
		return fmt.Errorf("emit must be a string or a list of strings")
	}
}

// RuleMatch is one topic selected for an event.
type RuleMatch struct {
	Topic   string
	Drivers []string
}

type compiledRule struct {
	emit    []string
	drivers []string
	expr    *govaluate.EvaluableExpression
}

type RuleEngine struct {
	rules  []compiledRule
	strict bool
	logger *zap.SugaredLogger
}

var ruleFunctions = map[string]govaluate.ExpressionFunction{
	"contains": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("contains expects 2 arguments, got %d", len(args))
		}
		switch haystack := args[0].(type) {
		case string:
			needle, _ := args[1].(string)
			return strings.Contains(haystack, needle), nil
		case ruleList:
			for _, item := range haystack {
				if item == args[1] {
					return true, nil
				}
			}
		}
		return false, nil
	},
	"hasPrefix": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("hasPrefix expects 2 arguments, got %d", len(args))
		}
		value, _ := args[0].(string)
		prefix, _ := args[1].(string)
		return strings.HasPrefix(value, prefix), nil
	},
}

func NewRuleEngine(cfg RulesConfig) (*RuleEngine, error) {
	rules := make([]compiledRule, 0, len(cfg.Rules))
	for i, rule := range cfg.Rules {
		expr, err := govaluate.NewEvaluableExpressionWithFunctions(rewritePaths(rule.When), ruleFunctions)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, compiledRule{emit: rule.Emit, drivers: rule.Drivers, expr: expr})
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &RuleEngine{rules: rules, strict: cfg.Strict, logger: logger}, nil
}

func (r *RuleEngine) Evaluate(event Event) []RuleMatch {
	return r.EvaluateWithLogger(event, r.logger)
}

func (r *RuleEngine) EvaluateWithLogger(event Event, logger *zap.SugaredLogger) []RuleMatch {
	if r == nil || len(r.rules) == 0 {
		return nil
	}

	params := eventParameters{data: event.Data(), strict: r.strict}
	matches := make([]RuleMatch, 0, 1)
	for _, rule := range r.rules {
		result, err := rule.expr.Eval(params)
		if err != nil {
			logger.Warnf("rule eval failed: %v", err)
			continue
		}
		if ok, _ := result.(bool); !ok {
			continue
		}
		for _, topic := range rule.emit {
			matches = append(matches, RuleMatch{Topic: topic, Drivers: rule.drivers})
		}
	}
	return matches
}

// eventParameters resolves rule variables. Missing keys are nil unless strict.
type eventParameters struct {
	data   map[string]interface{}
	strict bool
}

// ruleList carries array values through govaluate. Its argument separator
// appends to a plain []interface{} left operand, which would merge a list
// argument with the arguments after it.
type ruleList []interface{}

func (p eventParameters) Get(name string) (interface{}, error) {
	value, ok := p.data[name]
	if !ok && p.strict {
		return nil, fmt.Errorf("no parameter %q found", name)
	}
	if list, isList := value.([]interface{}); isList {
		return ruleList(list), nil
	}
	return value, nil
}

// rewritePaths turns dotted paths such as payload.repository.name or
// $.payload.repository.name into bracketed govaluate variables so they resolve
// against flattened keys. Quoted strings are left untouched.
func rewritePaths(expr string) string {
	var out strings.Builder
	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == '"' || c == '\'' || c == '`':
			end := i + 1
			for end < len(expr) && expr[end] != c {
				if expr[end] == '\\' {
					end++
				}
				end++
			}
			if end < len(expr) {
				end++
			}
			out.WriteString(expr[i:end])
			i = end
		case c == '[':
			end := strings.IndexByte(expr[i:], ']')
			if end < 0 {
				out.WriteString(expr[i:])
				return out.String()
			}
			out.WriteString(expr[i : i+end+1])
			i += end + 1
		case c == '$' || isIdentStart(c):
			end := i
			for end < len(expr) && (isIdentPart(expr[end]) || expr[end] == '.' || expr[end] == '$') {
				end++
			}
			token := strings.TrimPrefix(expr[i:end], "$.")
			if strings.Contains(token, ".") {
				out.WriteString("[" + token + "]")
			} else {
				out.WriteString(token)
			}
			i = end
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
