package room

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidCharacter = errors.New("invalid character")
	ErrInvalidMessage   = errors.New("invalid message")
)

var validate = validator.New()

// ValidateCharacter checks a character before it is inserted into a store.
// The name is checked after trimming surrounding whitespace.
func ValidateCharacter(c Character) error {
	c.Name = strings.TrimSpace(c.Name)
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidCharacter, describe(err))
	}
	return nil
}

// ValidateMessage checks a message before it is inserted into a store.
func ValidateMessage(m Message) error {
	m.Content = strings.TrimSpace(m.Content)
	m.CharacterID = strings.TrimSpace(m.CharacterID)
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidMessage, describe(err))
	}
	return nil
}

func describe(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
