package httpapi

import (
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openapiDoc []byte

// LoadSpec parses and validates the bundled OpenAPI document describing
// this control API. Called once at startup so a malformed spec file
// fails the process immediately rather than surfacing later as a
// confusing 404 for every route.
func LoadSpec() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiDoc)
	if err != nil {
		return nil, fmt.Errorf("httpapi: parse bundled openapi document: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("httpapi: invalid bundled openapi document: %w", err)
	}
	return doc, nil
}
