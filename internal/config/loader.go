package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// Loader handles loading the routing document (LocalConfig) from files and
// readers, with environment variable substitution and include support.
type Loader struct {
	basePath     string
	loadedFiles  map[string]bool
	maxIncludes  int
	includeCount int
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		loadedFiles: make(map[string]bool),
		maxIncludes: 10,
	}
}

// LoadRoutingDocument loads the routing document from a file path.
func LoadRoutingDocument(path string) (*LocalConfig, error) {
	loader := NewLoader()
	return loader.Load(path)
}

// LoadRoutingDocumentFromReader loads the routing document from an io.Reader.
func LoadRoutingDocumentFromReader(r io.Reader) (*LocalConfig, error) {
	loader := NewLoader()
	return loader.LoadFromReader(r)
}

// Load loads the routing document from a file path.
func (l *Loader) Load(path string) (*LocalConfig, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	l.basePath = filepath.Dir(absPath)

	data, err := os.ReadFile(absPath) //nolint:gosec // path is validated via filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	l.loadedFiles[absPath] = true

	return l.parseConfig(data)
}

// LoadFromReader loads the routing document from an io.Reader.
func (l *Loader) LoadFromReader(r io.Reader) (*LocalConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return l.parseConfig(data)
}

// parseConfig parses YAML data into a LocalConfig.
func (l *Loader) parseConfig(data []byte) (*LocalConfig, error) {
	// Substitute environment variables
	content := l.substituteEnvVars(string(data))

	// Parse YAML
	var cfg LocalConfig
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &cfg, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment variable values.
func (l *Loader) substituteEnvVars(content string) string {
	// Handle escaped dollar signs first
	content = strings.ReplaceAll(content, "$$", "\x00ESCAPED_DOLLAR\x00")

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""
		if len(submatches) >= 3 {
			defaultValue = submatches[2]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return defaultValue
	})

	// Restore escaped dollar signs
	result = strings.ReplaceAll(result, "\x00ESCAPED_DOLLAR\x00", "$")

	return result
}

// LoadWithIncludes loads a routing document with support for include directives.
func (l *Loader) LoadWithIncludes(path string) (*LocalConfig, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	l.basePath = filepath.Dir(absPath)

	return l.loadWithIncludes(absPath)
}

// loadWithIncludes recursively loads configuration files with include support.
func (l *Loader) loadWithIncludes(path string) (*LocalConfig, error) {
	// Check for circular includes
	if l.loadedFiles[path] {
		return nil, fmt.Errorf("circular include detected: %s", path)
	}

	// Check max includes
	if l.includeCount >= l.maxIncludes {
		return nil, fmt.Errorf("maximum include depth (%d) exceeded", l.maxIncludes)
	}

	l.loadedFiles[path] = true
	l.includeCount++

	data, err := os.ReadFile(path) //nolint:gosec // path validated via circular include check
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// First, check for includes in raw YAML
	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML for includes: %w", err)
	}

	result, err := l.parseConfig(data)
	if err != nil {
		return nil, err
	}

	// Process includes if present, merging each included document underneath
	// the current one (current document takes precedence).
	if includes, ok := rawConfig["includes"].([]interface{}); ok {
		for _, inc := range includes {
			includePath, ok := inc.(string)
			if !ok {
				continue
			}
			if !filepath.IsAbs(includePath) {
				includePath = filepath.Join(filepath.Dir(path), includePath)
			}

			includedConfig, err := l.loadWithIncludes(includePath)
			if err != nil {
				return nil, fmt.Errorf("failed to load include %s: %w", includePath, err)
			}

			result = mergeLocalConfigPair(includedConfig, result)
		}
	}

	return result, nil
}

// MergeLocalConfigs merges multiple routing documents, with later documents
// taking precedence over earlier ones.
func MergeLocalConfigs(configs ...*LocalConfig) *LocalConfig {
	if len(configs) == 0 {
		return DefaultLocalConfig()
	}

	result := configs[0]
	for i := 1; i < len(configs); i++ {
		result = mergeLocalConfigPair(result, configs[i])
	}

	return result
}

// mergeLocalConfigPair merges two routing documents, with override taking precedence.
func mergeLocalConfigPair(base, override *LocalConfig) *LocalConfig {
	if override == nil {
		return base
	}
	if base == nil {
		return override
	}

	result := *base

	if override.Gateway.Name != "" {
		result.Gateway.Name = override.Gateway.Name
	}
	if len(override.Gateway.Listeners) > 0 {
		result.Gateway.Listeners = override.Gateway.Listeners
	}

	result.Routes = append(append([]LocalRoute{}, result.Routes...), override.Routes...)
	result.Backends = append(append([]LocalBackend{}, result.Backends...), override.Backends...)
	result.RateLimits = append(append([]LocalRateLimit{}, result.RateLimits...), override.RateLimits...)
	result.AuthPolicies = append(append([]LocalAuthPolicy{}, result.AuthPolicies...), override.AuthPolicies...)

	return &result
}

// ResolveConfigPath resolves a configuration file path, checking common locations.
func ResolveConfigPath(path string) (string, error) {
	// If path is absolute and exists, use it
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		return "", fmt.Errorf("config file not found: %s", path)
	}

	// Check relative to current directory
	if _, err := os.Stat(path); err == nil {
		return filepath.Abs(path)
	}

	// Check common locations
	etcPath := filepath.Join(string(filepath.Separator), "etc", "avapigw")
	commonPaths := []string{
		filepath.Join("configs", path),
		filepath.Join(etcPath, path),
		filepath.Join(os.Getenv("HOME"), ".avapigw", path),
	}

	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return filepath.Abs(p)
		}
	}

	return "", fmt.Errorf("config file not found: %s", path)
}
