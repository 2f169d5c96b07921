// Package vault provides a minimal HashiCorp Vault client used to bootstrap
// gateway secrets (JWT signing key, API-key seed) at startup. Vault
// integration sits outside the request path: it runs once during process
// bootstrap, not per-request, and is entirely optional.
//
// # Authentication Methods
//
// Token Authentication:
//
//	cfg := &vault.Config{
//	    Enabled:    true,
//	    Address:    "https://vault.example.com:8200",
//	    AuthMethod: vault.AuthMethodToken,
//	    Token:      "s.xxxxx",
//	    SecretPath: "secret/data/gateway/bootstrap",
//	}
//
// Kubernetes Authentication:
//
//	cfg := &vault.Config{
//	    Enabled:    true,
//	    AuthMethod: vault.AuthMethodKubernetes,
//	    Kubernetes: &vault.KubernetesAuthConfig{Role: "gateway"},
//	}
//
// AppRole Authentication:
//
//	cfg := &vault.Config{
//	    Enabled:    true,
//	    AuthMethod: vault.AuthMethodAppRole,
//	    AppRole:    &vault.AppRoleAuthConfig{RoleID: "role-id", SecretID: "secret-id"},
//	}
//
// # Bootstrap secrets
//
//	client, _ := vault.New(cfg, logger)
//	if err := client.Authenticate(ctx); err != nil { ... }
//	secrets, err := client.ReadBootstrapSecrets(ctx)
//
// If Enabled is false, New returns a disabled client whose methods fail
// with ErrVaultDisabled, so callers never need a nil check.
package vault
