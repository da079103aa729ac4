package tools

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// decodeArgs maps loosely typed tool arguments onto a typed struct.
// Providers frequently send numbers as floats and booleans as strings,
// so decoding is weakly typed.
func decodeArgs(args map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to build argument decoder: %w", err)
	}
	if err := decoder.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
