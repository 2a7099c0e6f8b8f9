package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TextParser handles plain text and markdown files. A form feed starts a
// new page; files without one have no page numbers.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"txt", "md"} }

func (p *TextParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}

	content := string(data)
	if strings.TrimSpace(content) == "" {
		return nil, ErrNoText
	}

	pages := strings.Split(content, "\f")
	var sections []Section
	for i, page := range pages {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		num := 0
		if len(pages) > 1 {
			num = i + 1
		}
		sections = append(sections, Section{
			Heading:    filepath.Base(path),
			Content:    page,
			PageNumber: num,
		})
	}

	return &ParseResult{Sections: sections, Method: "text"}, nil
}
