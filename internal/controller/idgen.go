package controller

import "github.com/google/uuid"

// newID mints a short unique id, grounded on the original's
// str(uuid.uuid4())[:8] truncation (tictactoe.py, follow_controller.py):
// short enough to read in logs, unique enough for the lifetime of a
// single message/file/game.
func newID() string {
	return uuid.NewString()[:8]
}
