// Package httpapi exposes the gateway over HTTP: account endpoints guarded by
// session tokens, and the query endpoint guarded by tenant API keys.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gragdev/grag-gateway/internal/config"
	"github.com/gragdev/grag-gateway/internal/store"
	"github.com/gragdev/grag-gateway/internal/upstream"
	"github.com/gragdev/grag-gateway/internal/usage"
)

// Handlers bundles the collaborators the HTTP layer needs.
type Handlers struct {
	store         *store.GormStore
	ledger        *usage.Ledger
	gemini        *upstream.Client
	jwt           config.JWTConfig
	encryptionKey string
}

// NewHandlers constructs the HTTP handler set.
func NewHandlers(s *store.GormStore, ledger *usage.Ledger, gemini *upstream.Client, jwt config.JWTConfig, encryptionKey string) *Handlers {
	return &Handlers{
		store:         s,
		ledger:        ledger,
		gemini:        gemini,
		jwt:           jwt,
		encryptionKey: encryptionKey,
	}
}

// parseIDParam reads a numeric path parameter.
func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, errParse := strconv.ParseUint(c.Param(name), 10, 64)
	if errParse != nil || id == 0 {
		failJSON(c, http.StatusBadRequest, "INVALID_ID", "Invalid identifier", nil)
		return 0, false
	}
	return id, true
}
