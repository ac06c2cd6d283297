package mcp

import (
	"time"

	"github.com/go-viper/mapstructure/v2"

	engerr "dementia-mcp/internal/errors"
)

// decodeArgs coerces raw tool params into a typed argument struct. MCP
// clients are loose with numeric and boolean types, so decoding is weakly
// typed; unknown keys are ignored.
func decodeArgs(params map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
	})
	if err != nil {
		return engerr.Internal("failed to build argument decoder", err)
	}
	if err := decoder.Decode(params); err != nil {
		return engerr.Wrap(engerr.KindValidation, "invalid tool arguments", err)
	}
	return nil
}
