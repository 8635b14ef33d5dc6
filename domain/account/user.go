// Package account describes the users handed to the chat core by the session provider.
package account

import (
	"club-chat/domain/chat"

	"github.com/samber/lo"
)

type Role string

const (
	SuperAdmin   Role = "super_admin"
	CollegeAdmin Role = "college_admin"
	ClubAdmin    Role = "club_admin"
	Student      Role = "student"
)

type ClubRole string

const (
	Member        ClubRole = "member"
	Lead          ClubRole = "lead"
	VicePresident ClubRole = "vice_president"
	President     ClubRole = "president"
)

// User is the current user as exposed by the session provider.
type User struct {
	UID           string        `json:"uid"`
	Name          string        `json:"name"`
	Email         string        `json:"email,omitempty"`
	Role          Role          `json:"role"`
	ClubID        chat.ClubID   `json:"clubId,omitempty"`
	EnrolledClubs []chat.ClubID `json:"enrolledClubs,omitempty"`
	ClubRole      ClubRole      `json:"clubRole,omitempty"`
}

func (u User) IsEnrolledIn(clubID chat.ClubID) bool {
	return lo.Contains(u.EnrolledClubs, clubID)
}

func (r Role) Valid() bool {
	switch r {
	case SuperAdmin, CollegeAdmin, ClubAdmin, Student:
		return true
	}
	return false
}
