package handler

import "time"

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Request / Response types ---

type generateDesignRequest struct {
	YardImage    string `json:"yard_image" validate:"required"`
	StyleID      string `json:"style_id"   validate:"required"`
	Prompt       string `json:"prompt"`
	Budget       string `json:"budget"`
	LocationType string `json:"location_type" validate:"omitempty,oneof=front_yard back_yard side_yard courtyard balcony"`
	SpaceSize    string `json:"space_size"`
	UseRAG       bool   `json:"use_rag"`
	// Uploaded style photos come before gallery picks in the reference list.
	StyleImages   []string `json:"style_images"`
	GalleryStyles []string `json:"gallery_styles"`
	MakePublic    bool     `json:"make_public"`
}

type estimateItemResponse struct {
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Size      string  `json:"size"`
	Quantity  int     `json:"quantity"`
	UnitPrice string  `json:"unit_price"`
	TotalLow  float64 `json:"total_low"`
	TotalHigh float64 `json:"total_high"`
}

type estimateResponse struct {
	Currency  string                 `json:"currency"`
	TotalLow  float64                `json:"total_low"`
	TotalHigh float64                `json:"total_high"`
	Items     []estimateItemResponse `json:"items"`
}

type designResultResponse struct {
	Images    []string         `json:"images"`
	PlanImage string           `json:"plan_image,omitempty"`
	VideoURL  string           `json:"video_url,omitempty"`
	YardImage string           `json:"yard_image,omitempty"`
	Analysis  string           `json:"analysis,omitempty"`
	StyleID   string           `json:"style_id,omitempty"`
	Estimate  estimateResponse `json:"estimate"`
}

type designLinks struct {
	Self string `json:"self"`
}

type generateDesignResponse struct {
	ShortID string `json:"short_id"`
	// Ephemeral marks a result that could not be saved; its id only works for
	// the current session and expires.
	Ephemeral bool                 `json:"ephemeral"`
	Balance   int                  `json:"balance"`
	Result    designResultResponse `json:"result"`
	Links     designLinks          `json:"_links"`
}

type savedDesignResponse struct {
	ShortID   string               `json:"short_id"`
	Public    bool                 `json:"public"`
	CreatedAt time.Time            `json:"created_at"`
	Result    designResultResponse `json:"result"`
	Links     designLinks          `json:"_links"`
}

type listDesignsResponse struct {
	Data []savedDesignResponse `json:"data"`
}

type publishRequest struct {
	Public bool `json:"public"`
}

type videoRequestedResponse struct {
	ShortID string `json:"short_id"`
	Status  string `json:"status"`
}
