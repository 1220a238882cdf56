package pipeline

import (
	"strings"

	"github.com/hadiudoit11/merlin/pkg/models"
)

// Matcher resolves a draft's assignee against organization members. A match
// must be confident: an ambiguous name leaves the task unassigned rather
// than assigning it to the wrong person.
type Matcher interface {
	Match(item models.ActionItem, members []models.Member) (userID int64, ok bool)
}

// bestEffortMatcher matches by exact email, then exact full name, then a
// unique first-name match. All comparisons are case-insensitive.
type bestEffortMatcher struct{}

func NewBestEffortMatcher() Matcher {
	return bestEffortMatcher{}
}

func (bestEffortMatcher) Match(item models.ActionItem, members []models.Member) (int64, bool) {
	if email := strings.ToLower(strings.TrimSpace(item.AssigneeEmail)); email != "" {
		for _, m := range members {
			if strings.ToLower(m.Email) == email {
				return m.UserID, true
			}
		}
	}

	name := strings.ToLower(strings.TrimSpace(item.AssigneeName))
	if name == "" || name == "unassigned" {
		return 0, false
	}

	for _, m := range members {
		if strings.ToLower(m.Name) == name {
			return m.UserID, true
		}
	}

	// First-name match, only when exactly one member carries it.
	var candidate int64
	found := 0
	for _, m := range members {
		first := strings.ToLower(strings.SplitN(m.Name, " ", 2)[0])
		if first == name {
			candidate = m.UserID
			found++
		}
	}
	if found == 1 {
		return candidate, true
	}
	return 0, false
}
