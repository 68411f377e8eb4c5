package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for values that would prevent the service
// from running correctly. It is called after file parsing and env overrides.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Address == "" {
		problems = append(problems, "server.address must not be empty")
	}

	switch c.Storage.Backend {
	case "memory":
		// No further requirements; data is lost on restart.
	case "postgres":
		if c.Storage.PostgresURL == "" {
			problems = append(problems, "storage.postgres_url is required for the postgres backend")
		}
	case "mongodb":
		if c.Storage.MongoDBURL == "" {
			problems = append(problems, "storage.mongodb_url is required for the mongodb backend")
		}
		if c.Storage.MongoDBDatabase == "" {
			problems = append(problems, "storage.mongodb_database is required for the mongodb backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("storage.backend %q is not one of memory, postgres, mongodb", c.Storage.Backend))
	}

	if c.Stripe.SecretKey == "" {
		problems = append(problems, "stripe.secret_key is required")
	}
	if c.Stripe.WebhookSecret == "" {
		problems = append(problems, "stripe.webhook_secret is required")
	}
	if c.Stripe.Mode != "" && c.Stripe.Mode != "live" && c.Stripe.Mode != "test" {
		problems = append(problems, fmt.Sprintf("stripe.mode %q is not one of live, test", c.Stripe.Mode))
	}

	if c.Checkout.Currency == "" {
		problems = append(problems, "checkout.currency must not be empty")
	}
	if c.Checkout.FrontendURL == "" {
		problems = append(problems, "checkout.frontend_url must not be empty")
	}

	if c.Auth.AdminPassword != "" && c.Auth.AdminEmail == "" {
		problems = append(problems, "auth.admin_email is required when auth.admin_password is set")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
