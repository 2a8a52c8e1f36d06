package api

import (
	"github.com/traildig/traildig-server/internal/service"
)

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Auth        *service.AuthService
	WorkSession *service.WorkSessionService
	Tag         *service.TagService
	Search      *service.SearchService // nil when full-text search is disabled
}
