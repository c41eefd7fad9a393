package model

import "time"

// RequestStatus is the review state of a material request.
type RequestStatus string

// Request statuses.
const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// ReturnType selects how an approved loan comes back into stock.
type ReturnType string

// Return types.
const (
	ReturnSelfDeclaration ReturnType = "self_declaration"
	ReturnAdminCheck      ReturnType = "admin_check"
)

// Valid reports whether t is a known return type.
func (t ReturnType) Valid() bool {
	return t == ReturnSelfDeclaration || t == ReturnAdminCheck
}

// ReturnStatus tracks an approved loan. The empty value means the loan is
// still outstanding.
type ReturnStatus string

// Return statuses.
const (
	ReturnNone    ReturnStatus = ""
	ReturnPending ReturnStatus = "pending_return"
	ReturnDone    ReturnStatus = "returned"
)

// MaterialRequest is a user's request to borrow a quantity of an item.
type MaterialRequest struct {
	ID                string        `json:"id"`
	UserID            string        `json:"userId"`
	UserName          string        `json:"userName"`
	ItemID            string        `json:"itemId"`
	ItemName          string        `json:"itemName"`
	Quantity          int           `json:"quantity"`
	Reason            string        `json:"reason"`
	Status            RequestStatus `json:"status"`
	AdminNote         string        `json:"adminNote,omitempty"`
	ReviewedBy        string        `json:"reviewedBy,omitempty"`
	ReviewedAt        *time.Time    `json:"reviewedAt,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	ReturnType        ReturnType    `json:"returnType,omitempty"`
	ReturnStatus      ReturnStatus  `json:"returnStatus,omitempty"`
	ReturnRequestedAt *time.Time    `json:"returnRequestedAt,omitempty"`
	ReturnedAt        *time.Time    `json:"returnedAt,omitempty"`
}

// OnLoan reports whether the request is approved and not yet returned.
func (r *MaterialRequest) OnLoan() bool {
	return r.Status == StatusApproved && r.ReturnStatus != ReturnDone
}

// EffectiveReturnType returns the return type, defaulting approved requests
// without one to self-declaration.
func (r *MaterialRequest) EffectiveReturnType() ReturnType {
	if r.ReturnType == "" {
		return ReturnSelfDeclaration
	}
	return r.ReturnType
}
