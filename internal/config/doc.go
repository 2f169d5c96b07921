// Package config provides configuration types and loading for the
// API Gateway.
//
// Two schemas live in this package: the ambient Config (listener ports,
// TLS, secrets bootstrap, observability, default policies) loaded from
// environment variables, and the declarative LocalConfig routing
// document (routes, backends, rate limits, auth policies) loaded from
// YAML with environment variable substitution and hot-reload support.
//
// # Configuration Loading
//
// Load the routing document from a YAML file:
//
//	loader := config.NewLoader()
//	doc, err := loader.Load("routes.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # File Watching
//
// Watch the routing document for changes:
//
//	watcher, err := config.NewWatcher(routesPath, func(doc *config.LocalConfig) {
//	    // Handle routing document update
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	watcher.Start(ctx)
package config
