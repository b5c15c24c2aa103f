package dom

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrNoMatch is returned by Query when no element matches the selector.
var ErrNoMatch = errors.New("dom: selector matches no element")

// ErrAmbiguous is returned by Query when a selector step matches more than one element.
var ErrAmbiguous = errors.New("dom: selector matches more than one element")

// selectorStep renders one compound selector: tag, then #id or .classes,
// then :nth-of-type(n) when the parent holds several elements with this tag.
func selectorStep(n *Node, nth, total int) string {
	var sb strings.Builder
	sb.WriteString(escapeIdent(n.Tag))
	if id, ok := n.Attr("id"); ok && id != "" {
		sb.WriteByte('#')
		sb.WriteString(escapeIdent(id))
	} else if cls, ok := n.Attr("class"); ok {
		for _, c := range strings.Fields(cls) {
			sb.WriteByte('.')
			sb.WriteString(escapeIdent(c))
		}
	}
	if total > 1 {
		fmt.Fprintf(&sb, ":nth-of-type(%d)", nth)
	}
	return sb.String()
}

// escapeIdent serializes s as a CSS identifier (CSSOM "serialize an identifier").
func escapeIdent(s string) string {
	var sb strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == 0:
			sb.WriteRune(utf8.RuneError)
		case (r >= 0x01 && r <= 0x1f) || r == 0x7f,
			i == 0 && r >= '0' && r <= '9',
			i == 1 && r >= '0' && r <= '9' && runes[0] == '-':
			fmt.Fprintf(&sb, "\\%x ", r)
		case i == 0 && r == '-' && len(runes) == 1:
			sb.WriteString(`\-`)
		case r >= 0x80 || r == '-' || r == '_' ||
			(r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			sb.WriteRune(r)
		default:
			sb.WriteByte('\\')
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// compound is one parsed selector step.
type compound struct {
	tag     string
	id      string
	classes []string
	nth     int // 0 when absent
}

// Query resolves a selector produced by Node.Selector back to its element.
// Only the grammar the generator emits is supported: compound steps of
// tag, #id, .class and :nth-of-type(n) joined by the child combinator.
func (d *Document) Query(selector string) (*Node, error) {
	steps, err := parseSelector(selector)
	if err != nil {
		return nil, err
	}
	if d.Root == nil || len(steps) == 0 {
		return nil, ErrNoMatch
	}
	if !steps[0].matches(d.Root, 1) {
		return nil, fmt.Errorf("%w: %q", ErrNoMatch, selector)
	}
	cur := d.Root
	for _, st := range steps[1:] {
		var found *Node
		seen := make(map[string]int)
		for _, c := range cur.Children {
			seen[c.Tag]++
			if !st.matches(c, seen[c.Tag]) {
				continue
			}
			if found != nil {
				return nil, fmt.Errorf("%w: %q", ErrAmbiguous, selector)
			}
			found = c
		}
		if found == nil {
			return nil, fmt.Errorf("%w: %q", ErrNoMatch, selector)
		}
		cur = found
	}
	return cur, nil
}

func (c compound) matches(n *Node, position int) bool {
	if c.tag != "" && c.tag != "*" && !strings.EqualFold(c.tag, n.Tag) {
		return false
	}
	if c.id != "" && n.AttrOr("id", "") != c.id {
		return false
	}
	if len(c.classes) > 0 {
		have := strings.Fields(n.AttrOr("class", ""))
		for _, want := range c.classes {
			if !contains(have, want) {
				return false
			}
		}
	}
	if c.nth > 0 && c.nth != position {
		return false
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// parseSelector splits selector on unescaped '>' and parses each step.
func parseSelector(selector string) ([]compound, error) {
	var steps []compound
	var part strings.Builder
	flush := func() error {
		text := trimStep(part.String())
		part.Reset()
		if text == "" {
			return fmt.Errorf("dom: empty step in selector %q", selector)
		}
		c, err := parseCompound(text)
		if err != nil {
			return err
		}
		steps = append(steps, c)
		return nil
	}
	for i := 0; i < len(selector); i++ {
		ch := selector[i]
		switch {
		case ch == '\\' && i+1 < len(selector):
			part.WriteByte(ch)
			i++
			part.WriteByte(selector[i])
		case ch == '>':
			if err := flush(); err != nil {
				return nil, err
			}
		default:
			part.WriteByte(ch)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return steps, nil
}

// trimStep strips the whitespace around a step, keeping an escaped trailing space.
func trimStep(s string) string {
	s = strings.TrimLeft(s, " \t\n")
	for len(s) > 0 && s[len(s)-1] == ' ' && (len(s) < 2 || s[len(s)-2] != '\\') {
		s = s[:len(s)-1]
	}
	return s
}

func parseCompound(s string) (compound, error) {
	var c compound
	tag, rest := readIdent(s)
	c.tag = tag
	for rest != "" {
		switch {
		case rest[0] == ' ':
			rest = rest[1:]
		case rest[0] == '#':
			c.id, rest = readIdent(rest[1:])
		case rest[0] == '.':
			var cls string
			cls, rest = readIdent(rest[1:])
			c.classes = append(c.classes, cls)
		case strings.HasPrefix(rest, ":nth-of-type("):
			end := strings.IndexByte(rest, ')')
			if end < 0 {
				return c, fmt.Errorf("dom: unterminated :nth-of-type in %q", s)
			}
			n, err := strconv.Atoi(strings.TrimSpace(rest[len(":nth-of-type("):end]))
			if err != nil || n < 1 {
				return c, fmt.Errorf("dom: bad :nth-of-type index in %q", s)
			}
			c.nth = n
			rest = rest[end+1:]
		default:
			return c, fmt.Errorf("dom: unsupported selector syntax %q", rest)
		}
	}
	return c, nil
}

// readIdent consumes a CSS identifier, resolving escapes, and returns the rest.
func readIdent(s string) (string, string) {
	var sb strings.Builder
	i := 0
	for i < len(s) {
		ch := s[i]
		if ch == '\\' && i+1 < len(s) {
			j := i + 1
			for j < len(s) && j-i <= 6 && isHex(s[j]) {
				j++
			}
			if j > i+1 {
				v, _ := strconv.ParseUint(s[i+1:j], 16, 32)
				sb.WriteRune(rune(v))
				if j < len(s) && s[j] == ' ' {
					j++
				}
				i = j
				continue
			}
			r, size := utf8.DecodeRuneInString(s[i+1:])
			sb.WriteRune(r)
			i += 1 + size
			continue
		}
		if ch == '#' || ch == '.' || ch == ':' || ch == ' ' {
			break
		}
		sb.WriteByte(ch)
		i++
	}
	return sb.String(), s[i:]
}

func isHex(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
