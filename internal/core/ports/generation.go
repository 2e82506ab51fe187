package ports

import "context"

// GenerateImagesRequest is the payload sent to the external image generation
// service. StyleImages is already merged and ordered by the orchestrator.
type GenerateImagesRequest struct {
	YardImage   string
	StyleImages []string
	Prompt      string
	StyleID     string
	WithPlan    bool
}

// GeneratedImages is the raw output of the image generation service.
type GeneratedImages struct {
	Images    []string
	PlanImage string
}

// ImageGenerator is the external design-generation service: asynchronous on
// the provider side, may take tens of seconds, fails with a generic error.
type ImageGenerator interface {
	Generate(ctx context.Context, req GenerateImagesRequest) (*GeneratedImages, error)
}

// AnalysisItem is one plant or material the analyzer identified for the
// redesign; it seeds the cost estimate.
type AnalysisItem struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

// YardAnalysis is the structural description of the yard and the suggested
// plant/material list.
type YardAnalysis struct {
	Summary string         `json:"summary"`
	Items   []AnalysisItem `json:"items"`
}

// YardAnalyzer produces a structural analysis of the uploaded yard photo.
// Failures degrade the flow to a default prompt; they never abort generation.
type YardAnalyzer interface {
	Analyze(ctx context.Context, yardImage, styleID, prompt string) (*YardAnalysis, error)
}

// PlantRef is a catalog entry returned by the RAG plant search.
type PlantRef struct {
	CommonName    string
	BotanicalName string
	Category      string
	PriceEstimate string
	ImageURL      string
	Score         float64
}

// PlantCatalog searches the landscaping knowledge base for real plants
// matching an analysis item, used to ground estimates in nursery pricing.
type PlantCatalog interface {
	FindPlants(ctx context.Context, query string, limit int) ([]PlantRef, error)
}

// VideoGenerator produces a before/after transformation video from the
// original yard photo and the selected render.
type VideoGenerator interface {
	Generate(ctx context.Context, originalImage, redesignImage string) (string, error)
}
