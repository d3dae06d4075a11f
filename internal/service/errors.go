package service

import (
	"errors"
	"fmt"

	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/utils"
)

var (
	ErrNameTaken           = errors.New("participant name already in use")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrSenderNotFound      = errors.New("sender is not a participant")
	ErrMessageNotFound     = errors.New("message not found")
	ErrNotMessageOwner     = errors.New("user is not the message sender")
)

// InvalidInputError carries every schema violation found in a request body.
type InvalidInputError struct {
	Fields []utils.ValidationError
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %d field error(s)", len(e.Fields))
}
