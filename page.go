package gasrag

// Page represents a crawled documentation page. Content is markdown; HTML
// is only consulted when Content is empty.
type Page struct {
	URL           string        `json:"url"`
	Title         string        `json:"title,omitempty"`
	Content       string        `json:"markdown,omitempty"`
	HTML          string        `json:"html,omitempty"`
	ComponentType string        `json:"componentType,omitempty"`
	Methods       []MethodDoc   `json:"methods,omitempty"`
	Properties    []PropertyDoc `json:"properties,omitempty"`
}

// MethodDoc is a structured method entry extracted from a reference page.
type MethodDoc struct {
	Name              string      `json:"name"`
	Signature         string      `json:"signature,omitempty"`
	Description       string      `json:"description,omitempty"`
	Parameters        []Parameter `json:"parameters,omitempty"`
	ReturnType        string      `json:"returnType,omitempty"`
	ReturnDescription string      `json:"returnDescription,omitempty"`
	Example           string      `json:"example,omitempty"`
}

// Parameter describes one method argument.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// PropertyDoc is a structured property or enum entry.
type PropertyDoc struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}
