package main

import (
	"encoding/json"
	"net/http"

	"github.com/vyrodovalexey/avapigw/internal/auth"
	"github.com/vyrodovalexey/avapigw/internal/credential"
	"github.com/vyrodovalexey/avapigw/internal/observability"
	"github.com/vyrodovalexey/avapigw/internal/schema"
)

// adminMux builds the control-endpoint admin listing (SPEC_FULL 4.9): the
// schema mapper (C3) has no wiring point inside the request pipeline, so
// its registration/validation/lookup operations are exposed here instead,
// alongside a basic-auth-protected identity check. It is mounted on the
// same listener as health/metrics, never on the proxied request path.
func adminMux(mapper *schema.Mapper, validator *credential.Validator, logger observability.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/admin/whoami", basicAuth(validator, logger, handleWhoami))
	mux.HandleFunc("/admin/schemas", basicAuth(validator, logger, handleRegisterSchema(mapper)))
	mux.HandleFunc("/admin/schemas/validate", basicAuth(validator, logger, handleValidateSchema(mapper)))
	mux.HandleFunc("/admin/lookup-tables", basicAuth(validator, logger, handleRegisterLookupTable(mapper)))
	mux.HandleFunc("/admin/lookup-tables/lookup", basicAuth(validator, logger, handleLookup(mapper)))

	return mux
}

// basicAuth gates handler behind credential.ValidateBasic, the only
// intended use of that method (admin listing, never the proxied path).
func basicAuth(validator *credential.Validator, logger observability.Logger, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if validator == nil {
			http.Error(w, "admin api disabled", http.StatusServiceUnavailable)
			return
		}

		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="admin"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		identity, err := validator.ValidateBasic(username, password)
		if err != nil {
			logger.Debug("admin basic auth failed", observability.String("user", username), observability.Error(err))
			w.Header().Set("WWW-Authenticate", `Basic realm="admin"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		r = r.WithContext(auth.ContextWithIdentity(r.Context(), identity))
		handler(w, r)
	}
}

func handleWhoami(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "no identity", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func handleRegisterSchema(mapper *schema.Mapper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var s schema.Schema
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			http.Error(w, "invalid schema body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if s.Name == "" {
			http.Error(w, "schema name is required", http.StatusBadRequest)
			return
		}

		mapper.RegisterSchema(s.Name, s)
		writeJSON(w, http.StatusCreated, map[string]uint64{"generation": mapper.Generation()})
	}
}

func handleValidateSchema(mapper *schema.Mapper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		schemaName := r.URL.Query().Get("schema")
		if schemaName == "" {
			http.Error(w, "schema query parameter is required", http.StatusBadRequest)
			return
		}

		var document map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&document); err != nil {
			http.Error(w, "invalid document body: "+err.Error(), http.StatusBadRequest)
			return
		}

		result := mapper.Validate(document, schemaName)
		status := http.StatusOK
		if !result.Valid {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, result)
	}
}

func handleRegisterLookupTable(mapper *schema.Mapper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		tableName := r.URL.Query().Get("table")
		if tableName == "" {
			http.Error(w, "table query parameter is required", http.StatusBadRequest)
			return
		}

		var mappings schema.LookupTable
		if err := json.NewDecoder(r.Body).Decode(&mappings); err != nil {
			http.Error(w, "invalid mappings body: "+err.Error(), http.StatusBadRequest)
			return
		}

		mapper.RegisterLookupTableWithReplication(r.Context(), tableName, mappings)
		writeJSON(w, http.StatusCreated, map[string]int{"entries": len(mappings)})
	}
}

func handleLookup(mapper *schema.Mapper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tableName := r.URL.Query().Get("table")
		source := r.URL.Query().Get("value")
		if tableName == "" || source == "" {
			http.Error(w, "table and value query parameters are required", http.StatusBadRequest)
			return
		}

		target, found := mapper.Lookup(r.Context(), tableName, source)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"found": found,
			"value": target,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
