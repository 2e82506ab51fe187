package handler

import (
	"github.com/tommypurcell/autoscape-api/internal/core/domain"
)

func toDesignResultResponse(r domain.DesignResult) designResultResponse {
	items := make([]estimateItemResponse, 0, len(r.Estimate.Items))
	for _, it := range r.Estimate.Items {
		items = append(items, estimateItemResponse{
			Name:      it.Name,
			Category:  it.Category,
			Size:      it.Size,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			TotalLow:  it.TotalLow,
			TotalHigh: it.TotalHigh,
		})
	}

	return designResultResponse{
		Images:    r.Images,
		PlanImage: r.PlanImage,
		VideoURL:  r.VideoURL,
		YardImage: r.YardImage,
		Analysis:  r.Analysis,
		StyleID:   r.StyleID,
		Estimate: estimateResponse{
			Currency:  r.Estimate.Currency,
			TotalLow:  r.Estimate.TotalLow,
			TotalHigh: r.Estimate.TotalHigh,
			Items:     items,
		},
	}
}

func toSavedDesignResponse(d *domain.SavedDesign) savedDesignResponse {
	return savedDesignResponse{
		ShortID:   d.ShortID,
		Public:    d.Public,
		CreatedAt: d.CreatedAt,
		Result:    toDesignResultResponse(d.Result),
		Links:     designLinks{Self: "/v1/designs/" + d.ShortID},
	}
}
