package domain

import "time"

// Farmer is a directory entry in the farmer listings that adopters browse.
type Farmer struct {
	ID            string   `json:"id"`
	UserID        string   `json:"userId"`
	FarmName      string   `json:"farmName"`
	County        string   `json:"county"`
	SubCounty     string   `json:"subCounty,omitempty"`
	CropTypes     []string `json:"cropTypes,omitempty"`
	FarmSizeAcres float64  `json:"farmSizeAcres,omitempty"`
	Bio           string   `json:"bio,omitempty"`
	FundingGoal   int64    `json:"fundingGoal,omitempty"`
	FundedAmount  int64    `json:"fundedAmount,omitempty"`
	Verified      bool     `json:"verified"`
}

// AdoptionStatus tracks an adoption through its lifecycle on the backend.
type AdoptionStatus string

const (
	AdoptionPending   AdoptionStatus = "pending"
	AdoptionActive    AdoptionStatus = "active"
	AdoptionCompleted AdoptionStatus = "completed"
	AdoptionCancelled AdoptionStatus = "cancelled"
)

// Adoption links an adopter to a farmer with a monthly contribution.
type Adoption struct {
	ID                  string         `json:"id"`
	FarmerID            string         `json:"farmerId"`
	AdopterID           string         `json:"adopterId"`
	MonthlyContribution int64          `json:"monthlyContribution"`
	Currency            string         `json:"currency"`
	Status              AdoptionStatus `json:"status"`
	Message             string         `json:"message,omitempty"`
	CreatedAt           time.Time      `json:"createdAt"`
}
