package access

import (
	"club-chat/domain/account"
	"club-chat/domain/chat"

	"github.com/samber/lo"
)

// Member is one entry of a club roster.
type Member struct {
	UID      string           `json:"uid"`
	Name     string           `json:"name"`
	Role     account.Role     `json:"role"`
	ClubRole account.ClubRole `json:"clubRole,omitempty"`
	Label    string           `json:"label"`
}

// MembersOf keeps the users belonging to the club: its club admin and its enrolled students.
// Super and college admins reach every club without being part of its roster.
func MembersOf(users []account.User, clubID chat.ClubID) []Member {
	belongs := lo.Filter(users, func(user account.User, _ int) bool {
		switch user.Role {
		case account.ClubAdmin:
			return user.ClubID == clubID
		case account.Student:
			return user.IsEnrolledIn(clubID)
		default:
			return false
		}
	})
	return lo.Map(belongs, func(user account.User, _ int) Member {
		return Member{
			UID:      user.UID,
			Name:     user.Name,
			Role:     user.Role,
			ClubRole: user.ClubRole,
			Label:    RoleInClub(&user, clubID),
		}
	})
}
