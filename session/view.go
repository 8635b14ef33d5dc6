package session

import (
	"club-chat/access"
	"club-chat/domain/chat"
	"club-chat/projection"
	"context"
)

type Phase string

const (
	Unauthenticated Phase = "unauthenticated"
	CheckingAccess  Phase = "checking_access"
	AccessDenied    Phase = "access_denied"
	Subscribing     Phase = "subscribing"
	Live            Phase = "live"
	Reconnecting    Phase = "reconnecting"
	Closed          Phase = "closed"
)

const (
	MsgSignIn           = "Please sign in to access the chat"
	MsgLoading          = "Loading chat..."
	MsgNoAccess         = "You don't have access to this club's chat"
	MsgNoAccessSub      = "Only club members can participate"
	MsgMembershipFailed = "Failed to verify club membership. Please try again."
	MsgStreamFailed     = "Failed to load messages. Retrying..."
	MsgSendFailed       = "Failed to send message. Please try again."
	MsgOffline          = "You're offline. Messages will be sent when connection is restored."
	PlaceholderOnline   = "Type your message..."
	PlaceholderOffline  = "Offline - messages will be sent when connected"
)

// Notice replaces the message list when there is nothing to show.
type Notice struct {
	Headline string `json:"headline"`
	Subtext  string `json:"subtext,omitempty"`
}

// View is everything a renderer needs, rebuilt after every transition.
type View struct {
	ClubID        chat.ClubID             `json:"clubId"`
	ClubName      string                  `json:"clubName,omitempty"`
	UserID        string                  `json:"userId,omitempty"`
	Phase         Phase                   `json:"phase"`
	Membership    access.MembershipStatus `json:"membership"`
	Messages      chat.Snapshot           `json:"messages,omitempty"`
	Timeline      *projection.Timeline    `json:"timeline,omitempty"`
	Notice        *Notice                 `json:"notice,omitempty"`
	Online        bool                    `json:"online"`
	RetryCount    int                     `json:"retryCount"`
	Error         string                  `json:"error,omitempty"`
	Err           error                   `json:"-"`
	CanRetry      bool                    `json:"canRetry"`
	OfflineBanner string                  `json:"offlineBanner,omitempty"`
	Placeholder   string                  `json:"placeholder"`
	Draft         string                  `json:"draft"`
	Sending       bool                    `json:"sending"`
	CanSubmit     bool                    `json:"canSubmit"`
}

// ViewSink receives every published view of a session, in order.
type ViewSink interface {
	Consume(ctx context.Context, view View) error
}

type ViewSinkFunc func(ctx context.Context, view View) error

func (f ViewSinkFunc) Consume(ctx context.Context, view View) error {
	return f(ctx, view)
}
