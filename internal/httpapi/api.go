package httpapi

import "net/http"

// Controller registers a group of routes on the shared mux
type Controller interface {
	AddRoutes(*http.ServeMux)
}
