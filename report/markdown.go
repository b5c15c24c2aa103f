package report

import (
	"bytes"
	"fmt"
	"io"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// MarkdownFormatter renders the HTML report body and converts it to
// Markdown, so both outputs always carry the same content.
type MarkdownFormatter struct {
	conv *converter.Converter
}

// NewMarkdownFormatter creates a formatter with table support.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

func (f *MarkdownFormatter) Format(w io.Writer, r *Report) error {
	var buf bytes.Buffer
	if err := renderHTML(&buf, r, false); err != nil {
		return err
	}
	md, err := f.conv.ConvertString(buf.String())
	if err != nil {
		return fmt.Errorf("report: markdown: %w", err)
	}
	if _, err := io.WriteString(w, md); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}
