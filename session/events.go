package session

import (
	"club-chat/domain/account"
	"club-chat/domain/chat"
)

// event is anything the controller loop reacts to.
type event interface {
	isEvent()
}

type authChanged struct {
	user *account.User
}

type clubChanged struct {
	clubID   chat.ClubID
	clubName string
}

type membershipChecked struct {
	checkID uint64
	ok      bool
	err     error
}

type snapshotReceived struct {
	generation uint64
	snapshot   chat.Snapshot
}

type streamFailed struct {
	generation uint64
	err        error
}

type retryFired struct {
	timerID uint64
}

type retryRequested struct{}

type dismissRequested struct{}

type connectivityChanged struct {
	online bool
}

type inputChanged struct {
	text string
}

type submitRequested struct {
	reply chan error
}

type appendFinished struct {
	sendID uint64
	text   string
	err    error
}

func (authChanged) isEvent()         {}
func (clubChanged) isEvent()         {}
func (membershipChecked) isEvent()   {}
func (snapshotReceived) isEvent()    {}
func (streamFailed) isEvent()        {}
func (retryFired) isEvent()          {}
func (retryRequested) isEvent()      {}
func (dismissRequested) isEvent()    {}
func (connectivityChanged) isEvent() {}
func (inputChanged) isEvent()        {}
func (submitRequested) isEvent()     {}
func (appendFinished) isEvent()      {}
