package chat

import (
	"time"
)

// Sender is supplied by the caller at send time and embedded into the message.
type Sender struct {
	UID   string `json:"uid" validate:"required"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Role  string `json:"role,omitempty"`
}

type PostMessageCommand struct {
	ClubID    ClubID `validate:"required"`
	Sender    Sender
	Text      string `validate:"required,max=4096"`
	CreatedAt time.Time
}
