package ws

import (
	"club-chat/domain/chat"
	"club-chat/session"
	"encoding/json"
)

// Frames sent by the server
const (
	TypeView   = "view"   // full session view, sent after every transition
	TypeUnread = "unread" // unread counter after a read
	TypeError  = "error"  // a client frame was rejected
)

// Frames sent by the client
const (
	TypeInput   = "input"
	TypeSubmit  = "submit"
	TypeRetry   = "retry"
	TypeDismiss = "dismiss"
	TypeRead    = "read"
	TypeSwitch  = "switch"
	TypeSignIn  = "sign_in"
	TypeSignOut = "sign_out"
)

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// inbound keeps the payload raw until the type is known.
type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ViewPayload struct {
	View   session.View `json:"view"`
	Unread int          `json:"unread"`
}

type UnreadPayload struct {
	ClubID chat.ClubID `json:"clubId"`
	Unread int         `json:"unread"`
	Total  int         `json:"total"`
}

type ErrorPayload struct {
	Frame  string `json:"frame"`
	Error  string `json:"error"`
	Status int    `json:"status"`
}

type InputPayload struct {
	Text string `json:"text"`
}

type SwitchPayload struct {
	ClubID   chat.ClubID `json:"clubId"`
	ClubName string      `json:"clubName,omitempty"`
}

type SignInPayload struct {
	Token string `json:"token"`
}
