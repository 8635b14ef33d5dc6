package access

import (
	"club-chat/domain/account"
	"club-chat/domain/chat"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMembersOf(t *testing.T) {
	req := require.New(t)
	directory := []account.User{
		{UID: "root", Name: "Root", Role: account.SuperAdmin},
		{UID: "dean", Name: "Dean", Role: account.CollegeAdmin},
		{UID: "admin-chess", Name: "Chess Admin", Role: account.ClubAdmin, ClubID: "chess"},
		{UID: "admin-drama", Name: "Drama Admin", Role: account.ClubAdmin, ClubID: "drama"},
		{UID: "alice", Name: "Alice Johnson", Role: account.Student, EnrolledClubs: []chat.ClubID{"chess"}, ClubRole: account.President},
		{UID: "bob", Name: "Bob Smith", Role: account.Student, EnrolledClubs: []chat.ClubID{"chess", "drama"}},
		{UID: "carol", Name: "Carol", Role: account.Student, EnrolledClubs: []chat.ClubID{"drama"}},
	}

	members := MembersOf(directory, "chess")

	req.Equal([]Member{
		{UID: "admin-chess", Name: "Chess Admin", Role: account.ClubAdmin, Label: "Club Admin"},
		{UID: "alice", Name: "Alice Johnson", Role: account.Student, ClubRole: account.President, Label: "President"},
		{UID: "bob", Name: "Bob Smith", Role: account.Student, Label: "Member"},
	}, members)
	req.Empty(MembersOf(directory, "robotics"))
}
