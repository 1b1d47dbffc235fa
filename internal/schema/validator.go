// Package schema validates event payloads before they are published.
package schema

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"daisy-dictation-service/internal/observability/logging"
)

// Validator checks struct tags on event payloads.
type Validator struct {
	validate *validator.Validate
	log      zerolog.Logger
}

func New() *Validator {
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      logging.WithComponent("schema"),
	}
}

// Validate returns an error naming every failed field.
func (v *Validator) Validate(event any) error {
	if err := v.validate.Struct(event); err != nil {
		v.log.Warn().Err(err).Type("event", event).Msg("Event failed validation")
		return fmt.Errorf("invalid event: %w", err)
	}
	v.log.Trace().Type("event", event).Msg("Event validated")
	return nil
}
