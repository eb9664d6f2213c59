/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package exchange

import (
	"errors"
	"fmt"

	"github.com/Seednode/santabox/derangement"
)

var (
	ErrNotFound      = errors.New("session not found")
	ErrExists        = errors.New("session already exists")
	ErrDuplicateName = errors.New("name is already taken")
	ErrInvalidName   = errors.New("invalid name")
	ErrWrongState    = errors.New("not allowed in the current session state")

	ErrInsufficientParticipants = derangement.ErrInsufficientParticipants
	ErrDerangementFailed        = derangement.ErrDerangementFailed
)

func invalidName(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidName, fmt.Sprintf(format, args...))
}

func wrongState(op string, status Status) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrWrongState, op, status)
}
