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

// CaseRepository reads and writes documents of the Cases database.
type CaseRepository struct {
	coll *mongo.Collection
}

func NewCaseRepository(coll *mongo.Collection) *CaseRepository {
	return &CaseRepository{coll: coll}
}

func (r *CaseRepository) Get(ctx context.Context, id string) (model.Case, error) {
	var c model.Case
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Case{}, model.ErrCaseNotFound
	}
	if err != nil {
		return model.Case{}, fmt.Errorf("get case: %w", err)
	}
	return normalizeCase(c), nil
}

// Save upserts the whole document by id.
func (r *CaseRepository) Save(ctx context.Context, c model.Case) error {
	c = normalizeCase(c)
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": c.ID}, c, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save case: %w", err)
	}
	return nil
}

func (r *CaseRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	return nil
}

// Find returns one page of documents matching selector plus the total match count.
func (r *CaseRepository) Find(ctx context.Context, selector bson.M, page model.Page) (model.CaseList, error) {
	if selector == nil {
		selector = bson.M{}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(page.Skip()).
		SetLimit(int64(page.Size))

	cursor, err := r.coll.Find(ctx, selector, opts)
	if err != nil {
		return model.CaseList{}, fmt.Errorf("find cases: %w", err)
	}
	defer cursor.Close(ctx)

	cases := make([]model.Case, 0, page.Size)
	for cursor.Next(ctx) {
		var c model.Case
		if err := cursor.Decode(&c); err != nil {
			return model.CaseList{}, fmt.Errorf("decode case: %w", err)
		}
		cases = append(cases, normalizeCase(c))
	}
	if err := cursor.Err(); err != nil {
		return model.CaseList{}, fmt.Errorf("iterate cases: %w", err)
	}

	total, err := r.coll.CountDocuments(ctx, selector)
	if err != nil {
		return model.CaseList{}, fmt.Errorf("count cases: %w", err)
	}

	return model.CaseList{Cases: cases, Total: total}, nil
}

func normalizeCase(c model.Case) model.Case {
	if c.Workers == nil {
		c.Workers = []string{}
	}
	if c.Clients == nil {
		c.Clients = []string{}
	}
	c.AdditionalProperties = normalizeMap(c.AdditionalProperties)
	return c
}
