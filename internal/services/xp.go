package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/guildhall/guildhall-backend/internal/models"
	"github.com/guildhall/guildhall-backend/internal/store"
)

// XP deltas awarded by the engines. Values match the live economy.
const (
	XPSendMessage   = 1
	XPSendAudio     = 3
	XPCreatePoll    = 2
	XPUploadMedia   = 5
	XPVotePoll      = 2
	XPQuizCorrect   = 10
	XPQuizWrong     = -1
	XPDeletePenalty = -20
	XPThumbsDown    = -5
	XPInactivity    = -10
)

// ThumbsDownEmoji always penalizes the message sender regardless of who
// reacts with it.
const ThumbsDownEmoji = "👎"

const inactivityWindow = 7 * 24 * time.Hour

// ReactionXPForRole returns the XP a sender earns when someone with the
// given role reacts to their message (thumbs-down excluded).
func ReactionXPForRole(role models.Role) int {
	switch role {
	case models.RoleAdmin:
		return 5
	case models.RoleCoAdmin:
		return 4
	case models.RoleAssistantAdmin, models.RoleLeader, models.RoleGroupLeader:
		return 3
	case models.RoleRater:
		return 2
	}
	return 1
}

// XPRecord is the per-user score document stored at xp/<user_id>.
type XPRecord struct {
	Score      int   `json:"score"`
	LastActive int64 `json:"last_active,omitempty"` // unix ms
}

// XPLedger applies additive score deltas. Scores are clamped at zero in one
// place (here) so no call site can push a user negative.
type XPLedger struct {
	st store.Store
}

func NewXPLedger(st store.Store) *XPLedger {
	return &XPLedger{st: st}
}

func xpPath(userID string) string {
	return "xp/" + userID
}

// Apply adds delta to the user's score atomically, clamping at zero.
func (l *XPLedger) Apply(ctx context.Context, userID string, delta int) error {
	if delta == 0 || userID == "" {
		return nil
	}
	return l.st.AtomicTransform(ctx, xpPath(userID), func(current json.RawMessage) (interface{}, error) {
		var rec XPRecord
		if current != nil {
			if err := json.Unmarshal(current, &rec); err != nil {
				return nil, err
			}
		}
		rec.Score += delta
		if rec.Score < 0 {
			rec.Score = 0
		}
		return &rec, nil
	})
}

// ApplyBestEffort is Apply for side-effect call sites: the primary mutation
// has already landed, so a ledger failure is logged and swallowed rather
// than rolled back.
func (l *XPLedger) ApplyBestEffort(ctx context.Context, userID string, delta int) {
	if err := l.Apply(ctx, userID, delta); err != nil {
		log.Printf("xp: failed to apply %+d to user %s: %v", delta, userID, err)
	}
}

// Score returns the user's current score (zero when no record exists).
func (l *XPLedger) Score(ctx context.Context, userID string) (int, error) {
	var rec XPRecord
	err := l.st.Read(ctx, xpPath(userID), &rec)
	if err == store.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Score, nil
}

// CheckInactivity stamps the user's lastActive marker and applies the
// inactivity penalty when the previous marker is older than the window.
// Because the stamp moves forward on every check, the penalty fires at most
// once per window. Called when a session opens.
func (l *XPLedger) CheckInactivity(ctx context.Context, userID string) error {
	now := time.Now().UTC().UnixMilli()
	return l.st.AtomicTransform(ctx, xpPath(userID), func(current json.RawMessage) (interface{}, error) {
		var rec XPRecord
		if current != nil {
			if err := json.Unmarshal(current, &rec); err != nil {
				return nil, err
			}
		}
		if rec.LastActive != 0 && now-rec.LastActive > inactivityWindow.Milliseconds() {
			rec.Score += XPInactivity
			if rec.Score < 0 {
				rec.Score = 0
			}
		}
		rec.LastActive = now
		return &rec, nil
	})
}
