package api

import (
	"context"
	nethttp "net/http"

	"github.com/vaultfm/vaultfm/internal/constants"
	"github.com/vaultfm/vaultfm/internal/models"
)

// Health checks backend connectivity. It is bounded by its own timeout so a
// hung backend does not block startup.
func (c *Client) Health(ctx context.Context) (*models.HealthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.HealthCheckTimeout)
	defer cancel()

	var resp models.HealthResponse
	if err := c.doJSON(ctx, "health check", nethttp.MethodGet, "/health", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
