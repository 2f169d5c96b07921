package main

import (
	"fmt"

	"github.com/vyrodovalexey/avapigw/internal/config"
)

// buildRoutes converts the routing document's gateway-agnostic routes and
// backends into the router's compiled Route shape. The routing document
// (LocalConfig) is the on-disk, hot-reloadable source of truth; this
// bridge is what lets router.Router.LoadRoutes consume it.
func buildRoutes(lc *config.LocalConfig) ([]config.Route, error) {
	if lc == nil {
		return nil, nil
	}

	backends := make(map[string]config.LocalBackend, len(lc.Backends))
	for _, b := range lc.Backends {
		backends[b.Name] = b
	}

	routes := make([]config.Route, 0, len(lc.Routes))
	for _, lr := range lc.Routes {
		route, err := buildRoute(lr, backends)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", lr.Name, err)
		}
		routes = append(routes, route)
	}

	return routes, nil
}

func buildRoute(lr config.LocalRoute, backends map[string]config.LocalBackend) (config.Route, error) {
	route := config.Route{
		Name:          lr.Name,
		Timeout:       config.Duration(lr.Timeout),
		AuthPolicyRef: lr.AuthPolicyRef,
	}

	if match := buildRouteMatch(lr); !match.IsEmpty() {
		route.Match = []config.RouteMatch{match}
	}

	for _, ref := range lr.BackendRefs {
		dests, err := buildDestinations(ref, backends)
		if err != nil {
			return config.Route{}, err
		}
		route.Route = append(route.Route, dests...)
	}

	return route, nil
}

func buildRouteMatch(lr config.LocalRoute) config.RouteMatch {
	match := config.RouteMatch{Methods: lr.Methods}

	if lr.PathMatch.Value != "" {
		uri := &config.URIMatch{}
		switch lr.PathMatch.Type {
		case "Exact":
			uri.Exact = lr.PathMatch.Value
		case "RegularExpression":
			uri.Regex = lr.PathMatch.Value
		default:
			uri.Prefix = lr.PathMatch.Value
		}
		match.URI = uri
	}

	for _, h := range lr.Headers {
		hm := config.HeaderMatch{Name: h.Name}
		if h.Type == "RegularExpression" {
			hm.Regex = h.Value
		} else {
			hm.Exact = h.Value
		}
		match.Headers = append(match.Headers, hm)
	}

	for _, q := range lr.QueryParams {
		qm := config.QueryParamMatch{Name: q.Name}
		if q.Type == "RegularExpression" {
			qm.Regex = q.Value
		} else {
			qm.Exact = q.Value
		}
		match.QueryParams = append(match.QueryParams, qm)
	}

	return match
}

func buildDestinations(ref config.BackendRefConfig, backends map[string]config.LocalBackend) ([]config.RouteDestination, error) {
	backend, ok := backends[ref.Name]
	if !ok {
		return nil, fmt.Errorf("backend %q not found", ref.Name)
	}

	dests := make([]config.RouteDestination, 0, len(backend.Endpoints))
	for _, ep := range backend.Endpoints {
		port := ep.Port
		if ref.Port != 0 {
			port = ref.Port
		}
		weight := ref.Weight
		if weight == 0 {
			weight = ep.Weight
		}
		dests = append(dests, config.RouteDestination{
			Destination: config.Destination{Host: ep.Address, Port: port},
			Weight:      weight,
		})
	}

	return dests, nil
}
