package presentation

import (
	"encoding/json"
	"io"
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
}

// NewFormatter creates a new formatter
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{
		writer: writer,
	}
}

// FormatLayouts writes layouts as an indented JSON array.
func (f *Formatter) FormatLayouts(layouts []LayoutDTO) error {
	return f.encode(layouts)
}

// FormatLayout writes one layout as an indented JSON object.
func (f *Formatter) FormatLayout(layout LayoutDTO) error {
	return f.encode(layout)
}

// FormatGroups writes grouped layouts as an indented JSON array.
func (f *Formatter) FormatGroups(groups []GroupDTO) error {
	return f.encode(groups)
}

func (f *Formatter) encode(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
