package services

import (
	"context"
	"errors"

	"github.com/guildhall/guildhall-backend/internal/models"
)

const (
	meetingStartedText = "📞 I have started a Video Meeting. Click the video icon 📹 at the top to join!"
	meetingEndedText   = "🔴 Video Meeting Ended."
)

// ErrNotConferenceMessage is returned when End targets anything other than
// a still-active conference announcement.
var ErrNotConferenceMessage = errors.New("not an active conference message")

// ConferenceService bridges external video sessions into the chat: a system
// message announces the session, and ending the session patches that same
// message (keyed by the id captured at start) to an ended marker. The
// conferencing itself happens entirely outside this backend.
type ConferenceService struct {
	messages *MessageService
}

func NewConferenceService(messages *MessageService) *ConferenceService {
	return &ConferenceService{messages: messages}
}

// Start emits the session-started system message and returns its id, which
// the caller must hand back to End. Group members only.
func (s *ConferenceService) Start(ctx context.Context, actor Actor, groupID string) (string, error) {
	if err := s.requireMember(ctx, actor, groupID); err != nil {
		return "", err
	}
	msg, err := s.messages.SendSystem(ctx, actor, groupID, meetingStartedText)
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// End rewrites the start message in place to the ended marker. Only an
// unfinished conference announcement qualifies; ordinary messages and
// already-ended sessions are rejected so End can never overwrite user
// content.
func (s *ConferenceService) End(ctx context.Context, actor Actor, groupID, messageID string) error {
	if err := s.requireMember(ctx, actor, groupID); err != nil {
		return err
	}
	return s.messages.msgs.UpdateMessage(ctx, groupID, messageID, func(m *models.Message) error {
		if !m.IsSystem || m.MeetingEnded {
			return ErrNotConferenceMessage
		}
		m.Text = meetingEndedText
		m.MeetingEnded = true
		return nil
	})
}

func (s *ConferenceService) requireMember(ctx context.Context, actor Actor, groupID string) error {
	group, err := s.messages.msgs.Group(ctx, groupID)
	if err != nil {
		return err
	}
	if !group.HasMember(actor.ID) && !actor.Role.IsManager() {
		return ErrPermissionDenied
	}
	return nil
}
