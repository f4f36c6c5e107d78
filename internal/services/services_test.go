package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/guildhall/guildhall-backend/internal/chatstore"
	"github.com/guildhall/guildhall-backend/internal/models"
	"github.com/guildhall/guildhall-backend/internal/store"
)

// testEnv wires the service layer onto an in-memory store.
type testEnv struct {
	st   *store.MemoryStore
	chat *chatstore.Adapter
	xp   *XPLedger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewMemoryStore()
	return &testEnv{st: st, chat: chatstore.New(st), xp: NewXPLedger(st)}
}

func (e *testEnv) seedGroup(t *testing.T, members ...string) *models.Group {
	t.Helper()
	g := &models.Group{Name: "general", CreatedBy: "alice", Members: members}
	require.NoError(t, e.chat.PutGroup(context.Background(), g))
	return g
}

func (e *testEnv) seedScore(t *testing.T, userID string, score int) {
	t.Helper()
	require.NoError(t, e.xp.Apply(context.Background(), userID, score))
}

func (e *testEnv) score(t *testing.T, userID string) int {
	t.Helper()
	score, err := e.xp.Score(context.Background(), userID)
	require.NoError(t, err)
	return score
}

func actorWithRole(id string, role models.Role) Actor {
	return Actor{ID: id, Email: id + "@example.com", Name: id, Role: role}
}

func member(id string) Actor  { return actorWithRole(id, models.RoleMember) }
func admin(id string) Actor   { return actorWithRole(id, models.RoleAdmin) }
func coAdmin(id string) Actor { return actorWithRole(id, models.RoleCoAdmin) }
func leader(id string) Actor  { return actorWithRole(id, models.RoleLeader) }
func rater(id string) Actor   { return actorWithRole(id, models.RoleRater) }
