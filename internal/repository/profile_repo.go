package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"auxilium-api/internal/model"
)

// ProfileRepository stores the companion profile documents of the Users database.
type ProfileRepository struct {
	coll *mongo.Collection
}

func NewProfileRepository(coll *mongo.Collection) *ProfileRepository {
	return &ProfileRepository{coll: coll}
}

func (r *ProfileRepository) Get(ctx context.Context, id string) (model.Profile, error) {
	var p model.Profile
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Profile{}, model.ErrProfileNotFound
	}
	if err != nil {
		return model.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *ProfileRepository) Save(ctx context.Context, p model.Profile) error {
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}
