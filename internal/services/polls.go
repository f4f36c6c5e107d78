package services

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"github.com/guildhall/guildhall-backend/internal/chatstore"
	"github.com/guildhall/guildhall-backend/internal/models"
	"github.com/guildhall/guildhall-backend/internal/store"
)

var (
	// ErrPollRevealed rejects votes against a revealed quiz; reveal is
	// one-way and tallies freeze at that point.
	ErrPollRevealed = errors.New("poll already revealed")

	// ErrVoteChangeNotAllowed rejects switching options on a fixed poll.
	ErrVoteChangeNotAllowed = errors.New("vote change not allowed")

	// ErrInvalidPoll rejects creation payloads without a question, with
	// fewer than two options, or with an out-of-range quiz answer.
	ErrInvalidPoll = errors.New("poll needs a question and at least two options")
)

// PollService manages poll creation, voting and reveal. Vote casting is the
// concurrency-critical path: the whole decision (look up prior vote, adjust
// tallies, update the vote map) runs inside one atomic transform of the
// poll's message, never as separate reads and writes.
type PollService struct {
	msgs *chatstore.Adapter
	xp   *XPLedger
}

func NewPollService(msgs *chatstore.Adapter, xp *XPLedger) *PollService {
	return &PollService{msgs: msgs, xp: xp}
}

// PollInput is the creation payload.
type PollInput struct {
	Question        string   `json:"question"`
	Options         []string `json:"options"`
	IsQuiz          bool     `json:"is_quiz"`
	CorrectOption   int      `json:"correct_option"` // index into Options, quiz only
	AllowVoteChange bool     `json:"allow_vote_change"`
}

// Create posts a new poll message. Quizzes never allow vote changes.
// Awards +2 XP to the creator.
func (s *PollService) Create(ctx context.Context, actor Actor, groupID string, in PollInput) (*models.Message, error) {
	group, err := s.msgs.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, ActionSend, nil, group); err != nil {
		return nil, err
	}
	if in.Question == "" || len(in.Options) < 2 {
		return nil, ErrInvalidPoll
	}

	poll := &models.Poll{
		Question:        in.Question,
		IsQuiz:          in.IsQuiz,
		AllowVoteChange: in.AllowVoteChange && !in.IsQuiz,
	}
	for _, text := range in.Options {
		poll.Options = append(poll.Options, models.PollOption{ID: uuid.New().String(), Text: text})
	}
	if in.IsQuiz {
		if in.CorrectOption < 0 || in.CorrectOption >= len(poll.Options) {
			return nil, ErrInvalidPoll
		}
		poll.CorrectOptionID = poll.Options[in.CorrectOption].ID
	}

	m := &models.Message{
		GroupID:    groupID,
		SenderID:   actor.ID,
		SenderName: actor.Name,
		SenderRole: actor.Role,
		Type:       models.TypePoll,
		Poll:       poll,
	}
	saved, err := s.msgs.InsertMessage(ctx, m)
	if err != nil {
		return nil, err
	}
	s.xp.ApplyBestEffort(ctx, actor.ID, XPCreatePoll)
	return saved, nil
}

// Vote casts, retracts or changes the actor's vote in one atomic transform:
//
//   - no prior vote: record it and bump the chosen tally; first votes earn
//     XP (+10/-1 on quizzes depending on correctness, +2 otherwise)
//   - same option again: no-op when changes are disallowed, an explicit
//     retract when they are
//   - different option: only when changes are allowed; the old tally drops
//     by one (floored at zero) and the new one rises by one, with no
//     further XP
func (s *PollService) Vote(ctx context.Context, actor Actor, groupID, messageID, optionID string) error {
	var award int
	err := s.msgs.UpdateMessage(ctx, groupID, messageID, func(m *models.Message) error {
		award = 0
		p := m.Poll
		if m.Type != models.TypePoll || p == nil || len(p.Options) == 0 {
			// Malformed poll state; abort without touching anything.
			log.Printf("polls: vote against message %s with missing poll state", messageID)
			return store.ErrAbortTransform
		}
		if p.IsRevealed {
			return ErrPollRevealed
		}

		prev, voted := p.Votes[actor.ID]
		switch {
		case !voted:
			idx := p.OptionIndex(optionID)
			if idx < 0 {
				log.Printf("polls: vote for unknown option %s on message %s", optionID, messageID)
				return store.ErrAbortTransform
			}
			p.Options[idx].VoteCount++
			if p.Votes == nil {
				p.Votes = make(map[string]string)
			}
			p.Votes[actor.ID] = optionID
			award = firstVoteXP(p, optionID)

		case prev == optionID:
			if !p.AllowVoteChange {
				// Idempotent: re-selecting the same option changes nothing.
				return store.ErrAbortTransform
			}
			// Explicit retract.
			if idx := p.OptionIndex(prev); idx >= 0 && p.Options[idx].VoteCount > 0 {
				p.Options[idx].VoteCount--
			}
			delete(p.Votes, actor.ID)

		default:
			if !p.AllowVoteChange {
				return ErrVoteChangeNotAllowed
			}
			newIdx := p.OptionIndex(optionID)
			if newIdx < 0 {
				log.Printf("polls: vote for unknown option %s on message %s", optionID, messageID)
				return store.ErrAbortTransform
			}
			if idx := p.OptionIndex(prev); idx >= 0 && p.Options[idx].VoteCount > 0 {
				p.Options[idx].VoteCount--
			}
			p.Options[newIdx].VoteCount++
			p.Votes[actor.ID] = optionID
			// XP is awarded once, at first vote; changes earn nothing.
		}
		return nil
	})
	if err != nil {
		return err
	}
	if award != 0 {
		s.xp.ApplyBestEffort(ctx, actor.ID, award)
	}
	return nil
}

// Reveal flips the poll's reveal flag. One-way: once revealed, tallies are
// frozen and the flag never reverts.
func (s *PollService) Reveal(ctx context.Context, actor Actor, groupID, messageID string) error {
	return s.msgs.UpdateMessage(ctx, groupID, messageID, func(m *models.Message) error {
		if err := Authorize(actor, ActionReveal, m, nil); err != nil {
			return err
		}
		m.Poll.IsRevealed = true
		return nil
	})
}

func firstVoteXP(p *models.Poll, optionID string) int {
	if p.IsQuiz {
		if optionID == p.CorrectOptionID {
			return XPQuizCorrect
		}
		return XPQuizWrong
	}
	return XPVotePoll
}
