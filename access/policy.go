// Package access maps a (user, club) pair to chat permissions.
// Every function is pure: identical inputs always give identical results.
package access

import (
	"club-chat/domain/account"
	"club-chat/domain/chat"

	"github.com/samber/lo"
)

// MembershipStatus is derived on every evaluation and never stored.
type MembershipStatus struct {
	IsMember    bool   `json:"isMember"`
	Role        string `json:"role"`
	CanAccess   bool   `json:"canAccess"`
	CanModerate bool   `json:"canModerate"`
	CanSend     bool   `json:"canSend"`
}

var leadershipRoles = []account.ClubRole{account.President, account.VicePresident, account.Lead}

// HasChatAccess reports whether the user may read the club chat.
// College admins are granted every club: there is no college ownership check.
func HasChatAccess(user *account.User, clubID chat.ClubID) bool {
	if user == nil {
		return false
	}
	switch user.Role {
	case account.SuperAdmin, account.CollegeAdmin:
		return true
	case account.ClubAdmin:
		return user.ClubID == clubID
	case account.Student:
		return user.IsEnrolledIn(clubID)
	default:
		return false
	}
}

// CanModerate reports whether the user may moderate the club chat.
func CanModerate(user *account.User, clubID chat.ClubID) bool {
	if user == nil {
		return false
	}
	switch user.Role {
	case account.SuperAdmin, account.CollegeAdmin:
		return true
	case account.ClubAdmin:
		return user.ClubID == clubID
	case account.Student:
		return user.IsEnrolledIn(clubID) && lo.Contains(leadershipRoles, user.ClubRole)
	default:
		return false
	}
}

// CanSend is the same as HasChatAccess, no separate send policy exists.
func CanSend(user *account.User, clubID chat.ClubID) bool {
	return HasChatAccess(user, clubID)
}

// RoleInClub returns the human label of the user in the club, or "" without access.
func RoleInClub(user *account.User, clubID chat.ClubID) string {
	if user == nil {
		return ""
	}
	switch {
	case user.Role == account.SuperAdmin:
		return "Super Admin"
	case user.Role == account.CollegeAdmin:
		return "College Admin"
	case user.Role == account.ClubAdmin && user.ClubID == clubID:
		return "Club Admin"
	case user.Role == account.Student && user.IsEnrolledIn(clubID):
		return clubRoleLabel(user.ClubRole)
	default:
		return ""
	}
}

func clubRoleLabel(role account.ClubRole) string {
	switch role {
	case account.President:
		return "President"
	case account.VicePresident:
		return "Vice President"
	case account.Lead:
		return "Lead"
	default:
		return "Member"
	}
}

// Evaluate computes the full membership status of the user for the club.
func Evaluate(user *account.User, clubID chat.ClubID) MembershipStatus {
	if user == nil {
		return MembershipStatus{}
	}
	canAccess := HasChatAccess(user, clubID)
	return MembershipStatus{
		IsMember:    canAccess,
		Role:        RoleInClub(user, clubID),
		CanAccess:   canAccess,
		CanModerate: CanModerate(user, clubID),
		CanSend:     CanSend(user, clubID),
	}
}
