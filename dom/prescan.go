package dom

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// prescan runs the tokenizer over src before tree construction and rejects
// input whose start-tag count already exceeds MaxNodes. Nesting is checked
// on the built tree only: the tree builder closes many unclosed elements
// (p, li, a, h1-h6, nobr ...) when a sibling opens, so token depth says
// nothing about tree depth.
func prescan(ctx context.Context, src string, lim Limits) error {
	z := html.NewTokenizer(strings.NewReader(src))
	starts := 0
	for i := 0; ; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("dom: tokenize: %w", err)
			}
			return nil
		case html.StartTagToken, html.SelfClosingTagToken:
			starts++
			if starts > lim.MaxNodes {
				return fmt.Errorf("%w (%d)", ErrTooManyNodes, lim.MaxNodes)
			}
		}
	}
}
