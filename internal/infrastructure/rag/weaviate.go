package rag

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/tommypurcell/autoscape-api/internal/core/ports"
)

const plantClass = "LandscapePlant"

// PlantCatalog searches the landscaping knowledge base with a near-text
// vector query, grounding cost estimates in real nursery entries.
type PlantCatalog struct {
	client *weaviate.Client
}

func NewPlantCatalog(host, scheme string) (*PlantCatalog, error) {
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   host,
		Scheme: scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("weaviate client: %w", err)
	}
	return &PlantCatalog{client: client}, nil
}

func (c *PlantCatalog) FindPlants(ctx context.Context, query string, limit int) ([]ports.PlantRef, error) {
	if limit <= 0 {
		limit = 3
	}

	nearText := c.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	result, err := c.client.GraphQL().Get().
		WithClassName(plantClass).
		WithFields(
			graphql.Field{Name: "commonName"},
			graphql.Field{Name: "botanicalName"},
			graphql.Field{Name: "category"},
			graphql.Field{Name: "priceEstimate"},
			graphql.Field{Name: "imageUrl"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{
				{Name: "certainty"},
			}},
		).
		WithNearText(nearText).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate near-text query: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate near-text query: %s", result.Errors[0].Message)
	}

	return parsePlants(result), nil
}

func parsePlants(result *models.GraphQLResponse) []ports.PlantRef {
	get, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	rows, ok := get[plantClass].([]interface{})
	if !ok {
		return nil
	}

	plants := make([]ports.PlantRef, 0, len(rows))
	for _, row := range rows {
		obj, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		ref := ports.PlantRef{
			CommonName:    asString(obj["commonName"]),
			BotanicalName: asString(obj["botanicalName"]),
			Category:      asString(obj["category"]),
			PriceEstimate: asString(obj["priceEstimate"]),
			ImageURL:      asString(obj["imageUrl"]),
		}
		if additional, ok := obj["_additional"].(map[string]interface{}); ok {
			if certainty, ok := additional["certainty"].(float64); ok {
				ref.Score = certainty
			}
		}
		plants = append(plants, ref)
	}
	return plants
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}
