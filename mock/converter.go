package mock

import "github.com/solracnyc/gasrag"

var _ gasrag.Converter = (*Converter)(nil)

// Converter is a mock implementation of gasrag.Converter.
type Converter struct {
	ConvertFn func(html string) (string, error)
}

func (c *Converter) Convert(html string) (string, error) {
	return c.ConvertFn(html)
}
