package game

import "errors"

// Error taxonomy shared by every engine operation. All failures abort the
// triggering operation with zero state mutation; callers match with
// errors.Is and surface the reason string unchanged.
var (
	ErrNotFound         = errors.New("game not found")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrTicketLimit      = errors.New("exceeds max player tickets")
	ErrPlayerLimit      = errors.New("too many players in game")
	ErrGameClosed       = errors.New("game already closed")
	ErrUnauthorized     = errors.New("caller not authorized")
	ErrTransferFailed   = errors.New("asset transfer failed")
	ErrNoPlayers        = errors.New("game has no tickets")
)
