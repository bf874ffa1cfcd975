package databases

// go generate: mockery --name RuleDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/societymgmt/society-api/models"
)

const ruleName = "rules"

// RuleDatabase contains the methods to use with the rule database
type RuleDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Rule, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Rule, error)
	InsertOne(ctx context.Context, rule models.Rule) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error)
}

type ruleDatabase struct {
	db DatabaseHelper
}

// NewRuleDatabase initializes a new instance of rule database with the provided db connection
func NewRuleDatabase(db DatabaseHelper) RuleDatabase {
	return &ruleDatabase{
		db: db,
	}
}

func (c *ruleDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Rule, error) {
	rule := &models.Rule{}
	err := c.db.Collection(ruleName).FindOne(ctx, filter).Decode(&rule)
	if err != nil {
		return nil, err
	}
	return rule, nil
}

func (c *ruleDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Rule, error) {
	cursor, err := c.db.Collection(ruleName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var rules []models.Rule
	if err := cursor.Decode(&rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (c *ruleDatabase) InsertOne(ctx context.Context, rule models.Rule) (InsertOneResultHelper, error) {
	return c.db.Collection(ruleName).InsertOne(ctx, rule)
}

func (c *ruleDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return c.db.Collection(ruleName).UpdateOne(ctx, filter, update, opts...)
}

func (c *ruleDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error) {
	return c.db.Collection(ruleName).DeleteOne(ctx, filter, opts...)
}
