package databases

// go generate: mockery --name IdeaDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/societymgmt/society-api/models"
)

const ideaName = "ideas"

// IdeaDatabase contains the methods to use with the idea database
type IdeaDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Idea, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Idea, error)
	InsertOne(ctx context.Context, idea models.Idea) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error)
}

type ideaDatabase struct {
	db DatabaseHelper
}

// NewIdeaDatabase initializes a new instance of idea database with the provided db connection
func NewIdeaDatabase(db DatabaseHelper) IdeaDatabase {
	return &ideaDatabase{
		db: db,
	}
}

func (c *ideaDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Idea, error) {
	idea := &models.Idea{}
	err := c.db.Collection(ideaName).FindOne(ctx, filter).Decode(&idea)
	if err != nil {
		return nil, err
	}
	return idea, nil
}

func (c *ideaDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Idea, error) {
	cursor, err := c.db.Collection(ideaName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var ideas []models.Idea
	if err := cursor.Decode(&ideas); err != nil {
		return nil, err
	}
	return ideas, nil
}

func (c *ideaDatabase) InsertOne(ctx context.Context, idea models.Idea) (InsertOneResultHelper, error) {
	return c.db.Collection(ideaName).InsertOne(ctx, idea)
}

func (c *ideaDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return c.db.Collection(ideaName).UpdateOne(ctx, filter, update, opts...)
}

func (c *ideaDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error) {
	return c.db.Collection(ideaName).DeleteOne(ctx, filter, opts...)
}
