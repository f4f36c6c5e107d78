package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/guildhall/guildhall-backend/internal/chatstore"
	"github.com/guildhall/guildhall-backend/internal/models"
)

var (
	// ErrUpstreamFailure wraps media/conference service failures after any
	// placeholder state has been rolled back.
	ErrUpstreamFailure = errors.New("upstream service failure")

	// ErrMessageDeleted is returned when an operation targets a tombstoned
	// message that no longer accepts it.
	ErrMessageDeleted = errors.New("message is deleted")
)

// MediaResult is what the media backend returns for a finished upload.
type MediaResult struct {
	URL          string
	ResourceType string // "image", "video" or "raw"
	SizeBytes    int64
}

// MediaService is the external upload backend (Cloudinary in production).
type MediaService interface {
	Upload(ctx context.Context, data []byte, fileName string) (*MediaResult, error)
}

// MessageService orchestrates the message lifecycle: send, edit, delete,
// forward, pin. Every mutation goes through the authorization gate first
// and through the store adapter's atomic primitives after.
type MessageService struct {
	msgs  *chatstore.Adapter
	xp    *XPLedger
	media MediaService
}

func NewMessageService(msgs *chatstore.Adapter, xp *XPLedger, media MediaService) *MessageService {
	return &MessageService{msgs: msgs, xp: xp, media: media}
}

// Send posts a text message. When replyToID is set, an immutable snippet of
// the target is captured onto the new message. Awards +1 XP to the sender.
func (s *MessageService) Send(ctx context.Context, actor Actor, groupID, text, replyToID string) (*models.Message, error) {
	group, err := s.msgs.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, ActionSend, nil, group); err != nil {
		return nil, err
	}

	m := s.newMessage(actor, groupID, models.TypeText)
	m.Text = text

	if replyToID != "" {
		target, err := s.msgs.Message(ctx, groupID, replyToID)
		if err != nil {
			return nil, err
		}
		m.ReplyTo = &models.ReplyRef{
			MessageID: target.ID,
			Sender:    displayName(target),
			Text:      target.Snippet(),
		}
	}

	saved, err := s.msgs.InsertMessage(ctx, m)
	if err != nil {
		return nil, err
	}
	s.xp.ApplyBestEffort(ctx, actor.ID, XPSendMessage)
	return saved, nil
}

// SendAudio posts an audio message. Awards +3 XP.
func (s *MessageService) SendAudio(ctx context.Context, actor Actor, groupID, audioURL string) (*models.Message, error) {
	group, err := s.msgs.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, ActionSend, nil, group); err != nil {
		return nil, err
	}

	m := s.newMessage(actor, groupID, models.TypeAudio)
	m.AudioURL = audioURL

	saved, err := s.msgs.InsertMessage(ctx, m)
	if err != nil {
		return nil, err
	}
	s.xp.ApplyBestEffort(ctx, actor.ID, XPSendAudio)
	return saved, nil
}

// SendSystem posts a system message (conference notifications). System
// messages bypass the restriction gate; they are emitted by the backend,
// not typed by a user.
func (s *MessageService) SendSystem(ctx context.Context, actor Actor, groupID, text string) (*models.Message, error) {
	m := s.newMessage(actor, groupID, models.TypeText)
	m.Text = text
	m.IsSystem = true
	return s.msgs.InsertMessage(ctx, m)
}

// SendMedia runs the upload flow: write a placeholder message so the group
// sees the upload in progress, call the media backend, then either patch
// the placeholder with the real payload (+5 XP) or hard-delete it.
func (s *MessageService) SendMedia(ctx context.Context, actor Actor, groupID, fileName, contentType string, data []byte) (*models.Message, error) {
	group, err := s.msgs.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, ActionSend, nil, group); err != nil {
		return nil, err
	}
	if s.media == nil {
		return nil, fmt.Errorf("%w: media service not configured", ErrUpstreamFailure)
	}

	placeholder := s.newMessage(actor, groupID, guessMediaType(fileName, contentType))
	placeholder.IsUploading = true
	placeholder.FileName = fileName

	saved, err := s.msgs.InsertMessage(ctx, placeholder)
	if err != nil {
		return nil, err
	}

	result, err := s.media.Upload(ctx, data, fileName)
	if err != nil {
		// Roll the placeholder back; the failed upload leaves no trace.
		if delErr := s.msgs.DeleteMessage(ctx, groupID, saved.ID); delErr != nil {
			return nil, fmt.Errorf("%w: upload failed (%v) and placeholder cleanup failed: %v", ErrUpstreamFailure, err, delErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}

	finalType := finalMediaType(fileName, result.ResourceType)
	sizeStr := formatFileSize(result.SizeBytes)
	err = s.msgs.UpdateMessage(ctx, groupID, saved.ID, func(m *models.Message) error {
		m.MediaURL = result.URL
		m.Type = finalType
		m.FileSize = sizeStr
		m.IsUploading = false
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.xp.ApplyBestEffort(ctx, actor.ID, XPUploadMedia)
	return s.msgs.Message(ctx, groupID, saved.ID)
}

// Edit rewrites a text message's body, appending the previous text to the
// edit history first so no version is ever lost. Only the sender may edit.
func (s *MessageService) Edit(ctx context.Context, actor Actor, groupID, messageID, newText string) error {
	return s.msgs.UpdateMessage(ctx, groupID, messageID, func(m *models.Message) error {
		if err := Authorize(actor, ActionEdit, m, nil); err != nil {
			return err
		}
		if m.EditHistory == nil {
			m.EditHistory = make(map[string]string)
		}
		m.EditHistory[strconv.FormatInt(time.Now().UTC().UnixMilli(), 10)] = m.Text
		m.Text = newText
		m.IsEdited = true
		return nil
	})
}

// Delete tombstones a message: content stays in the store (admins keep read
// access to it), everyone else renders the tombstone. Deleting someone
// else's message costs the sender 20 XP; self-deletion is free.
func (s *MessageService) Delete(ctx context.Context, actor Actor, groupID, messageID string) error {
	var senderID string
	err := s.msgs.UpdateMessage(ctx, groupID, messageID, func(m *models.Message) error {
		if err := Authorize(actor, ActionDelete, m, nil); err != nil {
			return err
		}
		if m.IsDeleted {
			return ErrMessageDeleted
		}
		senderID = m.SenderID
		m.IsDeleted = true
		m.DeletedBy = emailLocalPart(actor.Email)
		m.DeletedByRole = actor.Role
		return nil
	})
	if err != nil {
		return err
	}
	if senderID != actor.ID {
		s.xp.ApplyBestEffort(ctx, senderID, XPDeletePenalty)
	}
	return nil
}

// Forward copies a message's rendering payload into other groups as brand
// new messages. Engagement state is not copied: reactions, receipts and
// edit history are dropped, and a forwarded poll starts with zero votes.
// All targets are written as one all-or-nothing batch.
func (s *MessageService) Forward(ctx context.Context, actor Actor, sourceGroupID, messageID string, targetGroupIDs []string) error {
	src, err := s.msgs.Message(ctx, sourceGroupID, messageID)
	if err != nil {
		return err
	}

	var batch []*models.Message
	for _, targetID := range targetGroupIDs {
		group, err := s.msgs.Group(ctx, targetID)
		if err != nil {
			return err
		}
		if err := Authorize(actor, ActionSend, nil, group); err != nil {
			return err
		}

		m := s.newMessage(actor, targetID, src.Type)
		m.IsForwarded = true
		switch src.Type {
		case models.TypePoll:
			m.Poll = forwardedPoll(src.Poll)
		case models.TypeAudio:
			m.AudioURL = src.AudioURL
		case models.TypeImage, models.TypeVideo, models.TypeFile:
			m.MediaURL = src.MediaURL
			m.FileName = src.FileName
			m.FileSize = src.FileSize
		default:
			m.Type = models.TypeText
			m.Text = src.Text
		}
		batch = append(batch, m)
	}
	if len(batch) == 0 {
		return nil
	}
	return s.msgs.InsertMessages(ctx, batch)
}

// Pin snapshots a message onto the group header. Manager only.
func (s *MessageService) Pin(ctx context.Context, actor Actor, groupID, messageID string) error {
	if err := Authorize(actor, ActionPin, nil, nil); err != nil {
		return err
	}
	msg, err := s.msgs.Message(ctx, groupID, messageID)
	if err != nil {
		return err
	}
	pinned := &models.PinnedMessage{
		MessageID: msg.ID,
		Sender:    displayName(msg),
		Text:      msg.Snippet(),
	}
	return s.msgs.UpdateGroup(ctx, groupID, func(g *models.Group) error {
		g.Pinned = pinned
		return nil
	})
}

// Unpin clears the group's pinned snapshot. Manager only.
func (s *MessageService) Unpin(ctx context.Context, actor Actor, groupID string) error {
	if err := Authorize(actor, ActionUnpin, nil, nil); err != nil {
		return err
	}
	return s.msgs.UpdateGroup(ctx, groupID, func(g *models.Group) error {
		g.Pinned = nil
		return nil
	})
}

// SetRestricted toggles the group's send restriction. Manager only.
func (s *MessageService) SetRestricted(ctx context.Context, actor Actor, groupID string, restricted bool) error {
	if !actor.Role.IsManager() {
		return ErrPermissionDenied
	}
	return s.msgs.UpdateGroup(ctx, groupID, func(g *models.Group) error {
		g.Restricted = restricted
		return nil
	})
}

// View returns a message as the actor is allowed to see it: deleted content
// is blanked into a tombstone for everyone but admins.
func (s *MessageService) View(ctx context.Context, actor Actor, groupID, messageID string) (*models.Message, error) {
	m, err := s.msgs.Message(ctx, groupID, messageID)
	if err != nil {
		return nil, err
	}
	return RedactForViewer(m, actor.Role), nil
}

// RedactForViewer strips deleted content for viewers without redacted-read
// access, keeping the tombstone metadata.
func RedactForViewer(m *models.Message, viewerRole models.Role) *models.Message {
	if !m.IsDeleted || viewerRole.CanSeeRedactedContent() {
		return m
	}
	out := *m
	out.Text = ""
	out.MediaURL = ""
	out.AudioURL = ""
	out.Poll = nil
	out.EditHistory = nil
	return &out
}

func (s *MessageService) newMessage(actor Actor, groupID string, typ models.MessageType) *models.Message {
	return &models.Message{
		GroupID:    groupID,
		SenderID:   actor.ID,
		SenderName: actor.Name,
		SenderRole: actor.Role,
		Type:       typ,
		CreatedAt:  time.Now().UTC(),
	}
}

func forwardedPoll(p *models.Poll) *models.Poll {
	if p == nil {
		return nil
	}
	fresh := &models.Poll{
		Question:        p.Question,
		IsQuiz:          p.IsQuiz,
		AllowVoteChange: p.AllowVoteChange,
	}
	if p.IsQuiz {
		fresh.CorrectOptionID = p.CorrectOptionID
	}
	for _, opt := range p.Options {
		fresh.Options = append(fresh.Options, models.PollOption{ID: opt.ID, Text: opt.Text})
	}
	return fresh
}

func displayName(m *models.Message) string {
	if m.SenderName != "" {
		return m.SenderName
	}
	return m.SenderID
}

func emailLocalPart(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}

func guessMediaType(fileName, contentType string) models.MessageType {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.TypeImage
	case strings.HasPrefix(contentType, "video/"):
		return models.TypeVideo
	case strings.HasPrefix(contentType, "audio/"):
		return models.TypeAudio
	}
	return models.TypeFile
}

func finalMediaType(fileName, resourceType string) models.MessageType {
	if strings.HasSuffix(strings.ToLower(fileName), ".pdf") {
		return models.TypeFile
	}
	switch resourceType {
	case "image":
		return models.TypeImage
	case "video":
		return models.TypeVideo
	}
	return models.TypeFile
}

func formatFileSize(bytes int64) string {
	mb := float64(bytes) / (1024 * 1024)
	if mb < 1 {
		return strconv.FormatInt(bytes/1024, 10) + " KB"
	}
	return strconv.FormatFloat(mb, 'f', 2, 64) + " MB"
}
