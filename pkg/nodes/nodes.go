// Package nodes holds helpers shared by the built-in node implementations.
package nodes

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// ErrInvalidConfig is returned when a node config cannot be decoded or validated.
var ErrInvalidConfig = errors.New("invalid node config")

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// DecodeConfig decodes a schema-free node config into out and validates its
// struct tags. Strings holding numbers or booleans are accepted.
func DecodeConfig(config map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	err = decoder.Decode(config)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})

	err = validate.Struct(out)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}
