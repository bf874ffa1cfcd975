package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Rule holds the structure for the rules collection in mongo. Rules make up
// the legal catalog citizens browse; only admins maintain them.
type Rule struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Category    string             `bson:"category" json:"category"`
	Penalty     string             `bson:"penalty,omitempty" json:"penalty,omitempty"`
	CreatedBy   string             `bson:"createdBy" json:"createdBy"`
	CreatedAt   primitive.DateTime `bson:"createdAt" json:"createdAt"`
	UpdatedAt   primitive.DateTime `bson:"updatedAt" json:"updatedAt"`
}
