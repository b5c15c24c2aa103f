// Command a11ylint checks local HTML files for accessibility violations.
//
//	a11ylint check index.html about.html
//	curl -s https://example.org | a11ylint check --format markdown
//	a11ylint check --format sarif -o a11y.sarif site/*.html
//	a11ylint rules --config rules.yaml
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
