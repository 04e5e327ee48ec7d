package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gragdev/grag-gateway/internal/models"
	log "github.com/sirupsen/logrus"
)

// planView is the public plan shape.
type planView struct {
	Tier                string   `json:"tier"`
	DisplayName         string   `json:"display_name"`
	Description         string   `json:"description,omitempty"`
	MonthPrice          float64  `json:"month_price"`
	MonthlyRequestLimit int      `json:"monthly_request_limit"`
	MaxConnections      int      `json:"max_connections"`
	Features            []string `json:"features"`
}

func viewPlan(plan *models.Plan) planView {
	features := []string{}
	if len(plan.Features) > 0 {
		// A malformed feature list degrades to empty rather than failing the
		// whole listing.
		_ = json.Unmarshal(plan.Features, &features)
	}
	return planView{
		Tier:                plan.Tier,
		DisplayName:         plan.DisplayName,
		Description:         plan.Description,
		MonthPrice:          plan.MonthPrice,
		MonthlyRequestLimit: plan.MonthlyRequestLimit,
		MaxConnections:      plan.MaxConnections,
		Features:            features,
	}
}

// ListPlans returns the enabled subscription tiers. The endpoint is public.
func (h *Handlers) ListPlans(c *gin.Context) {
	plans, errList := h.store.ListPlans(c.Request.Context())
	if errList != nil {
		log.WithError(errList).Error("plans: list failed")
		failJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not list plans", nil)
		return
	}
	views := make([]planView, 0, len(plans))
	for i := range plans {
		views = append(views, viewPlan(&plans[i]))
	}
	okJSON(c, http.StatusOK, gin.H{"plans": views})
}
