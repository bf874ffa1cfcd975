package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Petition statuses.
const (
	PetitionStatusActive    = "active"
	PetitionStatusCompleted = "completed"
	PetitionStatusExpired   = "expired"
	PetitionStatusRejected  = "rejected"
)

// Admin review verdicts.
const (
	ReviewStatusPending  = "pending"
	ReviewStatusApproved = "approved"
	ReviewStatusRejected = "rejected"
)

// MinPetitionGoal is the smallest signature goal a petition may declare.
const MinPetitionGoal = 10

// Signature records one citizen signing a petition. Name is a display
// name snapshot taken at signing time.
type Signature struct {
	UserID   string             `bson:"userId" json:"userId"`
	Name     string             `bson:"name" json:"name"`
	Comment  string             `bson:"comment,omitempty" json:"comment,omitempty"`
	SignedAt primitive.DateTime `bson:"signedAt" json:"signedAt"`
}

// PetitionUpdate is a progress note posted by the petition creator
type PetitionUpdate struct {
	Text    string             `bson:"text" json:"text"`
	AddedBy string             `bson:"addedBy" json:"addedBy"`
	AddedAt primitive.DateTime `bson:"addedAt" json:"addedAt"`
}

// AdminReview is the moderation verdict gating public visibility of a
// petition, distinct from the petition's own lifecycle status.
type AdminReview struct {
	Status     string              `bson:"status" json:"status"`
	Notes      string              `bson:"notes,omitempty" json:"notes,omitempty"`
	ReviewedBy string              `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	ReviewedAt *primitive.DateTime `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
}

// Petition holds the structure for the petitions collection in mongo
type Petition struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Category    string             `bson:"category" json:"category"`
	Goal        int                `bson:"goal" json:"goal"`
	Deadline    primitive.DateTime `bson:"deadline" json:"deadline"`
	Status      string             `bson:"status" json:"status"`
	Image       string             `bson:"image,omitempty" json:"image,omitempty"`
	CreatedBy   string             `bson:"createdBy" json:"createdBy"`
	Signatures  []Signature        `bson:"signatures" json:"signatures"`
	Updates     []PetitionUpdate   `bson:"updates" json:"updates"`
	AdminReview AdminReview        `bson:"adminReview" json:"adminReview"`
	CreatedAt   primitive.DateTime `bson:"createdAt" json:"createdAt"`
	UpdatedAt   primitive.DateTime `bson:"updatedAt" json:"updatedAt"`
}

// Normalize maps an active petition past its deadline to expired. Expiry is
// derived at read time; no job rewrites the stored status.
func (p *Petition) Normalize(now time.Time) {
	if p.Status == PetitionStatusActive && p.Deadline.Time().Before(now) {
		p.Status = PetitionStatusExpired
	}
}

// HasSigned reports whether userID already appears in the signature list.
func (p *Petition) HasSigned(userID string) bool {
	for _, s := range p.Signatures {
		if s.UserID == userID {
			return true
		}
	}
	return false
}

// VisibleTo reports whether the petition may appear in results served to the
// given caller. Unapproved petitions are visible only to their creator and
// admin-capable roles.
func (p *Petition) VisibleTo(userID string, adminCapable bool) bool {
	if adminCapable || p.CreatedBy == userID {
		return true
	}
	return p.AdminReview.Status == ReviewStatusApproved
}

// Redact clears review details that only the creator and admins may see.
func (p Petition) Redact(userID string, adminCapable bool) Petition {
	if adminCapable || p.CreatedBy == userID {
		return p
	}
	p.AdminReview.Notes = ""
	p.AdminReview.ReviewedBy = ""
	return p
}
