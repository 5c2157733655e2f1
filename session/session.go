package session

import (
	"time"

	"github.com/google/uuid"
)

// SystemName is the display name given to synthetic sessions created for
// system-to-system calls.
const SystemName = "System"

// Information carries everything the request pipeline knows about a logged-in
// principal. The manager stores records by value and hands out copies, so a
// record obtained from a lookup is private to its request. The transient
// transport fields (IP, UserAgent) are refreshed on every authenticated
// request.
type Information struct {
	SystemUserID  uuid.UUID   `json:"systemUserId"`
	Name          string      `json:"name"`
	IP            string      `json:"ip,omitempty"`
	UserAgent     string      `json:"userAgent,omitempty"`
	RoleIDs       []uuid.UUID `json:"roleIds,omitempty"`
	PermissionIDs []uuid.UUID `json:"permissionIds,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	LastActivity  time.Time   `json:"lastActivity"`
}

// Touch refreshes the last-activity stamp and returns the record for
// chaining.
func (s *Information) Touch() *Information {
	s.LastActivity = time.Now()
	return s
}

// IsSystem reports whether the session represents the anonymous system
// principal.
func (s *Information) IsSystem() bool {
	return s.SystemUserID == uuid.Nil && s.Name == SystemName
}

// NewSystemSession synthesizes a session for a system caller: the well-known
// nil identifier, the "System" display name and the caller's live transport
// details.
func NewSystemSession(ip, userAgent string) *Information {
	now := time.Now()
	return &Information{
		SystemUserID: uuid.Nil,
		Name:         SystemName,
		IP:           ip,
		UserAgent:    userAgent,
		CreatedAt:    now,
		LastActivity: now,
	}
}
