// Package mail delivers transactional email, such as verification links,
// over SMTP or to the log.
package mail

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var ErrInvalidMessage = errors.New("invalid mail message")

// Message is a single outbound email. At least one of Text and HTML must be set.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Validate reports a malformed recipient, a missing subject or an empty body.
func (m Message) Validate() error {
	err := validation.ValidateStruct(&m,
		validation.Field(&m.To, validation.Required, is.Email),
		validation.Field(&m.Subject, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if m.Text == "" && m.HTML == "" {
		return fmt.Errorf("%w: body must not be empty", ErrInvalidMessage)
	}
	return nil
}
