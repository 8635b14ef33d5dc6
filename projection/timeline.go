// Package projection builds the rendered timeline of a club from a snapshot.
// Handles ordering, deduplication and sender grouping.
// Pure functions only, safe for concurrent use.
package projection

import (
	"club-chat/domain/chat"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"
)

const (
	EmptyHeadline = "No messages yet"
	EmptySubtext  = "Start the conversation and connect with your club members!"
	timeLayout    = "15:04"
)

type Spacing string

const (
	Tight   Spacing = "tight"
	Regular Spacing = "regular"
)

// Entry carries the display directives of one message.
type Entry struct {
	Message          chat.Message `json:"message"`
	IsOwn            bool         `json:"isOwn"`
	ShowAvatar       bool         `json:"showAvatar"`
	ShowSenderHeader bool         `json:"showSenderHeader"`
	IsGroupTail      bool         `json:"isGroupTail"`
	ShowTimestamp    bool         `json:"showTimestamp"`
	Spacing          Spacing      `json:"spacing"`
	Initials         string       `json:"initials"`
	Time             string       `json:"time"`
	Pending          bool         `json:"pending"`
}

type EmptyState struct {
	Headline string `json:"headline"`
	Subtext  string `json:"subtext"`
}

type Timeline struct {
	Entries            []Entry     `json:"entries"`
	Empty              *EmptyState `json:"empty,omitempty"`
	ActiveParticipants int         `json:"activeParticipants"`
	ActiveLabel        string      `json:"activeLabel"`
}

// Build orders the snapshot then derives the grouping directives for the viewer.
// A nil location renders times in UTC.
func Build(messages []chat.Message, currentUID string, loc *time.Location) Timeline {
	ordered := Order(messages)
	active := ActiveParticipants(ordered)
	timeline := Timeline{
		ActiveParticipants: active,
		ActiveLabel:        fmt.Sprintf("%d active", active),
	}
	if len(ordered) == 0 {
		timeline.Empty = &EmptyState{Headline: EmptyHeadline, Subtext: EmptySubtext}
		return timeline
	}

	timeline.Entries = make([]Entry, len(ordered))
	for i, message := range ordered {
		runStart := i == 0 || ordered[i-1].SenderID != message.SenderID
		runEnd := i == len(ordered)-1 || ordered[i+1].SenderID != message.SenderID
		isOwn := message.SenderID == currentUID

		spacing := Tight
		if runEnd {
			spacing = Regular
		}
		timeline.Entries[i] = Entry{
			Message:          message,
			IsOwn:            isOwn,
			ShowAvatar:       runStart,
			ShowSenderHeader: runStart && !isOwn,
			IsGroupTail:      runEnd,
			ShowTimestamp:    runEnd,
			Spacing:          spacing,
			Initials:         Initials(message.SenderName),
			Time:             FormatTime(message, loc),
			Pending:          message.IsPending(),
		}
	}
	return timeline
}

// Order removes duplicated ids (first occurrence wins) and sorts by resolved
// timestamp, pending messages last. Equal timestamps keep their delivery order.
func Order(messages []chat.Message) []chat.Message {
	seen := make(map[string]struct{}, len(messages))
	ordered := lo.Filter(messages, func(m chat.Message, _ int) bool {
		if m.ID == "" {
			return true
		}
		if _, ok := seen[m.ID]; ok {
			return false
		}
		seen[m.ID] = struct{}{}
		return true
	})
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.IsPending() != b.IsPending() {
			return !a.IsPending()
		}
		if a.IsPending() {
			return false
		}
		return a.Timestamp.Before(*b.Timestamp)
	})
	return ordered
}

// FormatTime renders the resolved time as zero padded 24-hour HH:mm.
func FormatTime(message chat.Message, loc *time.Location) string {
	at := message.ResolvedTime()
	if at.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return at.In(loc).Format(timeLayout)
}

// Initials keeps the first letter of the first two words, upper-cased.
func Initials(name string) string {
	var b strings.Builder
	for _, word := range lo.Slice(strings.Fields(name), 0, 2) {
		r, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// ActiveParticipants counts distinct senders, a coarse proxy for presence.
func ActiveParticipants(messages []chat.Message) int {
	return len(lo.UniqBy(messages, func(m chat.Message) string {
		return m.SenderID
	}))
}
