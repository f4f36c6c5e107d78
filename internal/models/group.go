package models

import "time"

// PinnedMessage is the snapshot stored on a group when a manager pins a
// message. Like reply snapshots it is captured once and not re-resolved.
type PinnedMessage struct {
	MessageID string `json:"message_id"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
}

// Group is the group record stored at groups/<id>. Messages live under
// their own paths, not inside this record.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`

	// Members is the ordered membership list; no user id appears twice.
	Members []string `json:"members"`

	// Restricted gates sending: when set, only managers may post.
	Restricted bool `json:"restricted,omitempty"`

	Pinned *PinnedMessage `json:"pinned_message,omitempty"`
}

// HasMember reports whether userID is in the membership list.
func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// AddMember appends userID if not already present and reports whether the
// list changed.
func (g *Group) AddMember(userID string) bool {
	if g.HasMember(userID) {
		return false
	}
	g.Members = append(g.Members, userID)
	return true
}

// RemoveMember drops userID from the list and reports whether it was there.
func (g *Group) RemoveMember(userID string) bool {
	for i, m := range g.Members {
		if m == userID {
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			return true
		}
	}
	return false
}
