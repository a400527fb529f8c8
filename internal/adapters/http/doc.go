// Package httpadapter serves the JSON API over chi. openapi.yaml is the
// contract; it is embedded for /openapi.yaml and the Swagger UI and is the
// input for the generated Go client.
package httpadapter

//go:generate go run github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen -generate types,client -package uzimaclient -o ../../../pkg/uzimaclient/client.gen.go openapi.yaml
