package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Idea holds the structure for the ideas collection in mongo. Ideas carry no
// moderation workflow; upvotes is a set of user ids.
type Idea struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Category    string             `bson:"category" json:"category"`
	CreatedBy   string             `bson:"createdBy" json:"createdBy"`
	Upvotes     []string           `bson:"upvotes" json:"upvotes"`
	Comments    []Comment          `bson:"comments" json:"comments"`
	CreatedAt   primitive.DateTime `bson:"createdAt" json:"createdAt"`
	UpdatedAt   primitive.DateTime `bson:"updatedAt" json:"updatedAt"`
}

// HasUpvoted reports whether userID already appears in the upvote set.
func (i *Idea) HasUpvoted(userID string) bool {
	for _, id := range i.Upvotes {
		if id == userID {
			return true
		}
	}
	return false
}
