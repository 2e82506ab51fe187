package domain

import (
	"errors"
	"time"
)

var ErrDesignNotFound = errors.New("design not found")
var ErrGenerationFailed = errors.New("design generation failed")
var ErrForbidden = errors.New("access forbidden")

// EstimateItem is one line of the cost breakdown.
type EstimateItem struct {
	Name      string  `json:"name" bson:"name"`
	Category  string  `json:"category" bson:"category"`
	Size      string  `json:"size" bson:"size"`
	Quantity  int     `json:"quantity" bson:"quantity"`
	UnitPrice string  `json:"unit_price" bson:"unit_price"`
	TotalLow  float64 `json:"total_low" bson:"total_low"`
	TotalHigh float64 `json:"total_high" bson:"total_high"`
}

// CostEstimate is the itemized budget attached to a generated design.
type CostEstimate struct {
	Currency  string         `json:"currency" bson:"currency"`
	TotalLow  float64        `json:"total_low" bson:"total_low"`
	TotalHigh float64        `json:"total_high" bson:"total_high"`
	Items     []EstimateItem `json:"items" bson:"items"`
}

// DesignResult is the artifact produced by one generation flow. Immutable once
// produced; the optional fields degrade to "not shown" when absent.
type DesignResult struct {
	Images    []string     `json:"images" bson:"images"`
	PlanImage string       `json:"plan_image,omitempty" bson:"plan_image,omitempty"`
	VideoURL  string       `json:"video_url,omitempty" bson:"video_url,omitempty"`
	YardImage string       `json:"yard_image,omitempty" bson:"yard_image,omitempty"`
	Analysis  string       `json:"analysis,omitempty" bson:"analysis,omitempty"`
	StyleID   string       `json:"style_id,omitempty" bson:"style_id,omitempty"`
	Estimate  CostEstimate `json:"estimate" bson:"estimate"`
}

// SavedDesign is a persisted DesignResult. The short ID is unique across all
// saved designs and never changes once assigned; visibility may be toggled by
// the owner afterwards.
type SavedDesign struct {
	ID        string       `json:"id" bson:"_id"`
	ShortID   string       `json:"short_id" bson:"short_id"`
	Owner     string       `json:"owner" bson:"owner"`
	Public    bool         `json:"public" bson:"public"`
	CreatedAt time.Time    `json:"created_at" bson:"created_at"`
	Result    DesignResult `json:"result" bson:"result"`
}
