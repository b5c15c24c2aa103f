package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/hazyhaar/a11y/dom"
)

const (
	maxExpressionLength = 1000
	maxASTNodes         = 200
)

// ExprSpec declares a user-defined rule. When is evaluated once per element
// (restricted to Tags when set); a true result is a violation.
//
// The expression sees:
//
//	tag     string             lower-case tag name
//	attrs   map[string]string  attributes
//	style   map[string]string  effective inline style declarations
//	text    string             visible text
//	depth   int                nesting depth, html is 0
//	has(name)  bool            attribute present
//	attr(name) string          attribute value or ""
//
// Example: tag == "button" && text == "" && attr("aria-label") == ""
type ExprSpec struct {
	ID          string   `yaml:"id" json:"id" mapstructure:"id"`
	Description string   `yaml:"description" json:"description" mapstructure:"description"`
	Message     string   `yaml:"message" json:"message" mapstructure:"message"`
	Tags        []string `yaml:"tags" json:"tags,omitempty" mapstructure:"tags"`
	When        string   `yaml:"when" json:"when" mapstructure:"when"`
}

// ExprRule is a compiled ExprSpec.
type ExprRule struct {
	spec     ExprSpec
	program  *vm.Program
	tags     []string
	needText bool
}

// NewExprRule compiles spec.
func NewExprRule(spec ExprSpec) (*ExprRule, error) {
	spec.ID = strings.TrimSpace(spec.ID)
	if spec.ID == "" {
		return nil, errors.New("rules: expression rule needs an id")
	}
	if strings.TrimSpace(spec.When) == "" {
		return nil, fmt.Errorf("rules: expression rule %s: empty expression", spec.ID)
	}
	if len(spec.When) > maxExpressionLength {
		return nil, fmt.Errorf("rules: expression rule %s: expression too long (max %d chars)", spec.ID, maxExpressionLength)
	}
	program, err := expr.Compile(spec.When,
		expr.Env(exprEnv(nil, false)),
		expr.AsBool(),
		expr.MaxNodes(maxASTNodes),
	)
	if err != nil {
		return nil, fmt.Errorf("rules: expression rule %s: %w", spec.ID, err)
	}
	if spec.Message == "" {
		spec.Message = fmt.Sprintf("Element matches rule %s.", spec.ID)
	}
	if spec.Description == "" {
		spec.Description = spec.When
	}
	// Visible text costs a subtree walk per element; skip it when unused.
	needText := strings.Contains(spec.When, "text")
	return &ExprRule{
		spec:     spec,
		program:  program,
		tags:     spec.Tags,
		needText: needText,
	}, nil
}

func (r *ExprRule) ID() string          { return r.spec.ID }
func (r *ExprRule) Description() string { return r.spec.Description }

// Evaluate runs the expression against every candidate element.
func (r *ExprRule) Evaluate(ctx context.Context, doc *dom.Document) ([]Violation, error) {
	if doc == nil || doc.Root == nil {
		return nil, nil
	}
	candidates := doc.Nodes()
	if len(r.tags) > 0 {
		candidates = doc.Elements(r.tags...)
	}
	var out []Violation
	for i, n := range candidates {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		res, err := expr.Run(r.program, exprEnv(n, r.needText))
		if err != nil {
			return nil, fmt.Errorf("rules: %s on %s: %w", r.spec.ID, n.Selector(), err)
		}
		if hit, _ := res.(bool); hit {
			out = append(out, NewViolation(r.spec.ID, n, r.spec.Message))
		}
	}
	return out, nil
}

func exprEnv(n *dom.Node, withText bool) map[string]any {
	env := map[string]any{
		"tag":   "",
		"attrs": map[string]string{},
		"style": map[string]string{},
		"text":  "",
		"depth": 0,
		"has":   func(string) bool { return false },
		"attr":  func(string) string { return "" },
	}
	if n == nil {
		return env
	}
	attrs := make(map[string]string, len(n.Attrs))
	for _, a := range n.Attrs {
		attrs[strings.ToLower(a.Key)] = a.Val
	}
	style := make(map[string]string, len(n.Style()))
	for _, d := range n.Style() {
		if v, ok := n.StyleValue(d.Property); ok {
			style[d.Property] = v
		}
	}
	env["tag"] = strings.ToLower(n.Tag)
	env["attrs"] = attrs
	env["style"] = style
	env["depth"] = n.Depth
	env["has"] = func(name string) bool {
		_, ok := n.Attr(name)
		return ok
	}
	env["attr"] = func(name string) string { return n.AttrOr(name, "") }
	if withText {
		env["text"] = n.Text()
	}
	return env
}
