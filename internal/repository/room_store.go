package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Greenrenge/cf-boardgames-sub000/internal/model"
)

// RoomStore persists one snapshot document per room code.
type RoomStore interface {
	Load(ctx context.Context, code string) (*model.RoomSnapshot, error)
	Save(ctx context.Context, code string, snap *model.RoomSnapshot) error
	Wipe(ctx context.Context, code string) error
}

type roomStore struct {
	collection *mongo.Collection
}

// NewRoomStore creates a mongo-backed room store.
func NewRoomStore(db *mongo.Database) RoomStore {
	return &roomStore{
		collection: db.Collection("rooms"),
	}
}

type snapshotDoc struct {
	Code     string              `bson:"_id"`
	Snapshot *model.RoomSnapshot `bson:"snapshot"`
}

func (r *roomStore) Load(ctx context.Context, code string) (*model.RoomSnapshot, error) {
	var doc snapshotDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": code}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // Room not found
		}
		return nil, err
	}
	return doc.Snapshot, nil
}

func (r *roomStore) Save(ctx context.Context, code string, snap *model.RoomSnapshot) error {
	doc := snapshotDoc{Code: code, Snapshot: snap}
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": code}, doc,
		options.Replace().SetUpsert(true))
	return err
}

func (r *roomStore) Wipe(ctx context.Context, code string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": code})
	return err
}
