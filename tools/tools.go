//go:build tools

// Package tools pins the command-line tools used by go:generate and by
// operators: oapi-codegen builds the typed client from the HTTP adapter's
// openapi.yaml, goose applies the embedded SQL migrations by hand.
package tools

import (
	_ "github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen"
	_ "github.com/pressly/goose/v3/cmd/goose"
)
