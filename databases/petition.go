package databases

// go generate: mockery --name PetitionDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/societymgmt/society-api/models"
)

const petitionName = "petitions"

// PetitionDatabase contains the methods to use with the petition database
type PetitionDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Petition, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Petition, error)
	InsertOne(ctx context.Context, petition models.Petition) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

type petitionDatabase struct {
	db DatabaseHelper
}

// NewPetitionDatabase initializes a new instance of petition database with the provided db connection
func NewPetitionDatabase(db DatabaseHelper) PetitionDatabase {
	return &petitionDatabase{
		db: db,
	}
}

func (c *petitionDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Petition, error) {
	petition := &models.Petition{}
	err := c.db.Collection(petitionName).FindOne(ctx, filter).Decode(&petition)
	if err != nil {
		return nil, err
	}
	return petition, nil
}

func (c *petitionDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Petition, error) {
	cursor, err := c.db.Collection(petitionName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var petitions []models.Petition
	if err := cursor.Decode(&petitions); err != nil {
		return nil, err
	}
	return petitions, nil
}

func (c *petitionDatabase) InsertOne(ctx context.Context, petition models.Petition) (InsertOneResultHelper, error) {
	return c.db.Collection(petitionName).InsertOne(ctx, petition)
}

func (c *petitionDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return c.db.Collection(petitionName).UpdateOne(ctx, filter, update, opts...)
}

func (c *petitionDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error) {
	return c.db.Collection(petitionName).DeleteOne(ctx, filter, opts...)
}

func (c *petitionDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return c.db.Collection(petitionName).CountDocuments(ctx, filter, opts...)
}
