package main

import (
	"fmt"

	"github.com/blackrose-blackhat/crisis-guard/backend/internal/crisis"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/routing"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/server"
)

// newService wires the engine and routing policy selected by the root flags.
// The CLI never caches or audits.
func newService() (*server.Service, error) {
	lib, err := crisis.OpenLibrary(rootFlags.libraryPath)
	if err != nil {
		return nil, fmt.Errorf("load pattern library: %w", err)
	}
	router, err := routing.NewEngine(rootFlags.policyPath, nil)
	if err != nil {
		return nil, fmt.Errorf("load routing policy: %w", err)
	}
	return server.NewService(server.ServiceConfig{
		Engine: crisis.NewEngine(lib, nil),
		Router: router,
	}), nil
}
