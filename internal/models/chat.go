package models

import "time"

// MessageType discriminates the payload of a message. A message's type is
// fixed at creation and never changes.
type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
	TypeVideo MessageType = "video"
	TypeAudio MessageType = "audio"
	TypeFile  MessageType = "file"
	TypePoll  MessageType = "poll"
)

// ReplyRef is an immutable snapshot of the message being replied to,
// captured at reply time. It is never re-resolved, so later edits or
// deletions of the original do not change the quoted snippet.
type ReplyRef struct {
	MessageID string `json:"message_id"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
}

// PollOption is a single poll choice with its running tally.
type PollOption struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	VoteCount int    `json:"vote_count"`
}

// Poll is the mutable vote sub-state embedded in a poll-type message.
//
// Invariant: at every quiescent point, the sum of option VoteCounts equals
// the number of entries in Votes. All tally mutations go through a single
// atomic transform of the owning message to keep that true under
// concurrent voters.
type Poll struct {
	Question        string            `json:"question"`
	Options         []PollOption      `json:"options"`
	IsQuiz          bool              `json:"is_quiz,omitempty"`
	CorrectOptionID string            `json:"correct_option_id,omitempty"`
	AllowVoteChange bool              `json:"allow_vote_change,omitempty"`
	IsRevealed      bool              `json:"is_revealed,omitempty"`
	Votes           map[string]string `json:"votes,omitempty"` // user id -> option id
}

// OptionIndex returns the index of the option with the given id, or -1.
func (p *Poll) OptionIndex(optionID string) int {
	for i := range p.Options {
		if p.Options[i].ID == optionID {
			return i
		}
	}
	return -1
}

// Message is a single group message as stored at
// groups/<group_id>/messages/<message_id>.
//
// SenderRole is the sender's role at send time; permission checks against
// historical messages use this snapshot, not the sender's current role.
type Message struct {
	ID         string      `json:"id"`
	GroupID    string      `json:"group_id"`
	SenderID   string      `json:"sender_id"`
	SenderName string      `json:"sender_name,omitempty"`
	SenderRole Role        `json:"sender_role"`
	Type       MessageType `json:"type"`
	Text       string      `json:"text,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`

	IsEdited    bool              `json:"is_edited,omitempty"`
	EditHistory map[string]string `json:"edit_history,omitempty"` // unix-ms of edit -> prior text

	IsDeleted     bool   `json:"is_deleted,omitempty"`
	DeletedBy     string `json:"deleted_by,omitempty"`
	DeletedByRole Role   `json:"deleted_by_role,omitempty"`

	IsForwarded  bool `json:"is_forwarded,omitempty"`
	IsSystem     bool `json:"is_system,omitempty"`
	MeetingEnded bool `json:"meeting_ended,omitempty"`

	IsUploading bool   `json:"is_uploading,omitempty"`
	MediaURL    string `json:"media_url,omitempty"`
	AudioURL    string `json:"audio_url,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	FileSize    string `json:"file_size,omitempty"`

	ReplyTo *ReplyRef `json:"reply_to,omitempty"`
	Poll    *Poll     `json:"poll,omitempty"`

	// Reactions maps emoji -> set of reactor user ids. A user appears under
	// at most one emoji per message.
	Reactions map[string]map[string]bool `json:"reactions,omitempty"`

	// ReactionXP records the XP delta applied to the sender when a reaction
	// was added, keyed by ReactionKey(emoji, reactor). Removal reverses the
	// recorded delta exactly instead of recomputing it.
	ReactionXP map[string]int `json:"reaction_xp,omitempty"`

	// ReadBy maps user id -> unix-ms read timestamp. Entries are only ever
	// added, never removed.
	ReadBy map[string]int64 `json:"read_by,omitempty"`
}

// ReactionKey builds the ReactionXP map key for an (emoji, reactor) pair.
func ReactionKey(emoji, userID string) string {
	return emoji + "|" + userID
}

// ReactionEmoji returns the emoji the user currently reacts with, or "".
func (m *Message) ReactionEmoji(userID string) string {
	for emoji, users := range m.Reactions {
		if users[userID] {
			return emoji
		}
	}
	return ""
}

// Snippet returns the short text used when a message is quoted in a reply
// or pinned: the text itself for text messages, a type placeholder otherwise.
func (m *Message) Snippet() string {
	if m.Text != "" {
		return m.Text
	}
	switch m.Type {
	case TypeImage:
		return "📷 Image"
	case TypeVideo:
		return "🎥 Video"
	case TypeAudio:
		return "🎵 Audio"
	case TypeFile:
		if m.FileName != "" {
			return "📁 " + m.FileName
		}
		return "📁 File"
	case TypePoll:
		return "📊 Poll"
	}
	return "Message"
}
