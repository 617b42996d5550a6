package di

import (
	"go.uber.org/zap"

	"github.com/vinayh/lifecal-web/application/ports"
	"github.com/vinayh/lifecal-web/application/services"
	"github.com/vinayh/lifecal-web/infrastructure/config"
	"github.com/vinayh/lifecal-web/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Auth     ports.AuthProvider
	Store    ports.ProfileStore
	Sessions *services.SessionManager
}

// Close releases long-lived resources.
func (c *Container) Close() {
	if c.Sessions != nil {
		c.Sessions.Close()
	}
}
