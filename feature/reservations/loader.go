package reservations

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	handler *Handler
}

// NewFeature creates the reservations feature around a run service.
func NewFeature(service *Service, store *Store, logger *zap.Logger) *Feature {
	return &Feature{
		service: service,
		handler: NewHandler(service, store, logger),
	}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "reservations"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return f.service != nil
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
