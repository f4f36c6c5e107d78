package services

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/guildhall/guildhall-backend/internal/database"
	"github.com/guildhall/guildhall-backend/internal/models"
	"github.com/guildhall/guildhall-backend/internal/store"
)

// The archive mirrors message state from the Store into a flat MongoDB
// collection (one document per message) for efficient history pagination.
// The Store stays authoritative; the archive is a read model fed by the
// event stream and may lag briefly behind it.

const archiveCollection = "chat_messages"

// ArchivedMessage is the Mongo shape of a message snapshot.
type ArchivedMessage struct {
	MessageID  string    `bson:"message_id" json:"message_id"`
	GroupID    string    `bson:"group_id" json:"group_id"`
	SenderID   string    `bson:"sender_id" json:"sender_id"`
	SenderName string    `bson:"sender_name,omitempty" json:"sender_name,omitempty"`
	Type       string    `bson:"type" json:"type"`
	Text       string    `bson:"text,omitempty" json:"text,omitempty"`
	IsDeleted  bool      `bson:"is_deleted,omitempty" json:"is_deleted,omitempty"`
	IsEdited   bool      `bson:"is_edited,omitempty" json:"is_edited,omitempty"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}

// EnsureArchiveIndexes configures indexes for the archive collection.
// Called on startup after Mongo has connected.
func EnsureArchiveIndexes(ctx context.Context) error {
	col := database.DB.Collection(archiveCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "group_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_group_created"),
		},
		{
			Keys:    bson.D{{Key: "message_id", Value: 1}},
			Options: options.Index().SetName("idx_message_id").SetUnique(true),
		},
	}
	for _, m := range indexes {
		if _, err := col.Indexes().CreateOne(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// StartArchiver subscribes to message events and mirrors each snapshot into
// Mongo. Upserts keyed by message id make redelivery harmless (the event
// stream is at-least-once).
func StartArchiver(ctx context.Context, st store.Store) {
	events, cancel := st.Subscribe(ctx, "groups/")
	go func() {
		defer cancel()
		for evt := range events {
			if !strings.Contains(evt.Path, "/messages/") {
				continue
			}
			archiveEvent(ctx, evt)
		}
	}()
}

func archiveEvent(ctx context.Context, evt store.Event) {
	col := database.DB.Collection(archiveCollection)
	opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if evt.Value == nil {
		// Hard delete (rolled-back upload placeholder): drop the mirror too.
		msgID := evt.Path[strings.LastIndex(evt.Path, "/")+1:]
		if _, err := col.DeleteOne(opCtx, bson.M{"message_id": msgID}); err != nil {
			log.Printf("archive: delete mirror for %s failed: %v", evt.Path, err)
		}
		return
	}

	var m models.Message
	if err := json.Unmarshal(evt.Value, &m); err != nil {
		log.Printf("archive: bad message payload at %s: %v", evt.Path, err)
		return
	}

	doc := ArchivedMessage{
		MessageID:  m.ID,
		GroupID:    m.GroupID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Type:       string(m.Type),
		Text:       m.Text,
		IsDeleted:  m.IsDeleted,
		IsEdited:   m.IsEdited,
		CreatedAt:  m.CreatedAt,
	}
	if m.IsDeleted {
		doc.Text = "" // the archive never stores redacted content
	}

	_, err := col.ReplaceOne(opCtx,
		bson.M{"message_id": m.ID},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		log.Printf("archive: upsert for %s failed: %v", evt.Path, err)
	}
}

// LoadHistory returns paginated history for a group, newest-first cursoring
// with a before timestamp, returned oldest-first for rendering.
func LoadHistory(ctx context.Context, groupID string, before *time.Time, limit int64) ([]ArchivedMessage, bool, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	col := database.DB.Collection(archiveCollection)

	filter := bson.M{"group_id": groupID}
	if before != nil {
		filter["created_at"] = bson.M{"$lt": before.UTC()}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit + 1)

	cur, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, false, err
	}
	defer cur.Close(ctx)

	var msgs []ArchivedMessage
	for cur.Next(ctx) {
		var m ArchivedMessage
		if err := cur.Decode(&m); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	if err := cur.Err(); err != nil {
		return nil, false, err
	}

	hasMore := int64(len(msgs)) > limit
	if hasMore {
		msgs = msgs[:len(msgs)-1]
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, hasMore, nil
}
