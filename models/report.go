package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Report statuses.
const (
	ReportStatusPending    = "pending"
	ReportStatusInProgress = "in-progress"
	ReportStatusResolved   = "resolved"
	ReportStatusRejected   = "rejected"
)

// Report types.
const (
	ReportTypeViolation = "violation"
	ReportTypeComplaint = "complaint"
)

// Fine statuses.
const (
	FineStatusUnpaid = "unpaid"
	FineStatusPaid   = "paid"
)

// IsTerminalReportStatus reports whether status permits no further transition.
func IsTerminalReportStatus(status string) bool {
	return status == ReportStatusResolved || status == ReportStatusRejected
}

// ValidReportStatus reports whether status is a known report status.
func ValidReportStatus(status string) bool {
	switch status {
	case ReportStatusPending, ReportStatusInProgress, ReportStatusResolved, ReportStatusRejected:
		return true
	}
	return false
}

// ValidReportType reports whether t is a known report type.
func ValidReportType(t string) bool {
	return t == ReportTypeViolation || t == ReportTypeComplaint
}

// Comment is a citizen-visible comment on a report or idea
type Comment struct {
	Text      string             `bson:"text" json:"text"`
	Author    string             `bson:"author" json:"author"`
	CreatedAt primitive.DateTime `bson:"createdAt" json:"createdAt"`
}

// AdminNote is an internal note recorded by an admin status action
type AdminNote struct {
	Text    string             `bson:"text" json:"text"`
	AddedBy string             `bson:"addedBy" json:"addedBy"`
	AddedAt primitive.DateTime `bson:"addedAt" json:"addedAt"`
}

// Fine is a monetary penalty issued against a resolved violation report
type Fine struct {
	Amount    int64  `bson:"amount" json:"amount"`
	Currency  string `bson:"currency" json:"currency"`
	Status    string `bson:"status" json:"status"`
	SessionID string `bson:"sessionId,omitempty" json:"-"`
}

// Report holds the structure for the reports collection in mongo
type Report struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	Title       string              `bson:"title" json:"title"`
	Description string              `bson:"description" json:"description"`
	Type        string              `bson:"type" json:"type"`
	Category    string              `bson:"category" json:"category"`
	Location    string              `bson:"location" json:"location"`
	Evidence    string              `bson:"evidence,omitempty" json:"evidence,omitempty"`
	Status      string              `bson:"status" json:"status"`
	SubmittedBy string              `bson:"submittedBy" json:"submittedBy"`
	Comments    []Comment           `bson:"comments" json:"comments"`
	AdminNotes  []AdminNote         `bson:"adminNotes" json:"adminNotes"`
	Fine        *Fine               `bson:"fine,omitempty" json:"fine,omitempty"`
	CreatedAt   primitive.DateTime  `bson:"createdAt" json:"createdAt"`
	UpdatedAt   primitive.DateTime  `bson:"updatedAt" json:"updatedAt"`
	ResolvedAt  *primitive.DateTime `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
}
