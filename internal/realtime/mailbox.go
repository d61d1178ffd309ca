package realtime

import (
	"fmt"

	"github.com/yungbote/helpdesk-backend/internal/domain/auth"
)

// Target is the resolved audience of one message. Receiver is what the row
// stores; Members are the identities a push goes to.
type Target struct {
	Receiver auth.Identity
	Members  []auth.Identity
	// Mailbox marks the unclaimed-ticket fan-out: Receiver is the business
	// and Members are its owner plus every active employee.
	Mailbox bool
}

func Single(id auth.Identity) Target {
	return Target{Receiver: id, Members: []auth.Identity{id}}
}

func Mailbox(businessID uint64, employeeIDs []uint64) Target {
	owner := auth.NewIdentity(auth.RoleBusiness, businessID)
	members := make([]auth.Identity, 0, len(employeeIDs)+1)
	members = append(members, owner)
	for _, id := range employeeIDs {
		if id == 0 || id == businessID {
			continue
		}
		members = append(members, auth.NewIdentity(auth.RoleEmployee, id))
	}
	return Target{Receiver: owner, Members: members, Mailbox: true}
}

// MemberIDs returns the distinct user ids of Members, for unread counters.
func (t Target) MemberIDs() []uint64 {
	seen := make(map[uint64]bool, len(t.Members))
	out := make([]uint64, 0, len(t.Members))
	for _, m := range t.Members {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, m.ID)
	}
	return out
}

func (t Target) String() string {
	if t.Mailbox {
		return fmt.Sprintf("mailbox(%s, %d members)", t.Receiver.Key(), len(t.Members))
	}
	return t.Receiver.Key()
}
