package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Normalize fills zero fields from `default` tags and then checks `validate` tags.
// v must be a pointer to a struct.
func Normalize(v any) error {
	if err := defaults.Set(v); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return describe(err)
	}
	return nil
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		switch e.Tag() {
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than %s", e.Namespace(), e.Param()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than or equal to %s", e.Namespace(), e.Param()))
		case "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be less than or equal to %s", e.Namespace(), e.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", e.Namespace(), strings.ReplaceAll(e.Param(), " ", ", ")))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed validation: %s", e.Namespace(), e.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
