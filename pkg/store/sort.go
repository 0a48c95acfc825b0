package store

import (
	"sort"

	"github.com/mahaj/dupahar-dm/pkg/model"
)

// SortUsers orders users online first, then by username.
func SortUsers(users []model.User) {
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].IsOnline != users[j].IsOnline {
			return users[i].IsOnline
		}
		return users[i].Username < users[j].Username
	})
}

// Window applies skip and limit to an already sorted slice.
func Window(messages []model.Message, skip, limit int) []model.Message {
	if skip >= len(messages) {
		return []model.Message{}
	}
	end := len(messages)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	return messages[skip:end]
}
