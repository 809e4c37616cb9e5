package mcp

import (
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/hostgate/internal/errors"
)

// decode unmarshals MCP request arguments into a typed struct. Malformed
// arguments come back as a validation error naming the offending field.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, errors.NewValidation("invalid arguments: " + err.Error())
	}
	if err := json.Unmarshal(b, &result); err != nil {
		var typeErr *json.UnmarshalTypeError
		if stderrors.As(err, &typeErr) && typeErr.Field != "" {
			return result, errors.NewValidation("invalid argument " + typeErr.Field + ": expected " + typeErr.Type.String())
		}
		return result, errors.NewValidation("invalid arguments: " + err.Error())
	}
	return result, nil
}
