// Package main provides a CLI tool for generating test credentials for the
// vigil presence API. Tokens minted here use the dev signing key and will
// NOT work against a simulator configured with a real key.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"vigil/internal/token"
	"vigil/pkg/secrets"
)

const (
	// Matches the simulator's fallback when JWT_SIGNING_KEY is unset.
	devSigningKey = "vigil-dev-signing-key-not-for-production"

	defaultIssuer   = "vigil-sim"
	defaultAdminID  = "local-admin"
	defaultScopes   = token.ScopePresenceRead + "," + token.ScopePresenceAdmin
	defaultTokenTTL = time.Hour
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Type      string            `json:"type"`
	ExpiresIn string            `json:"expires_in,omitempty"`
	Claims    map[string]any    `json:"claims,omitempty"`
	Usage     map[string]string `json:"usage"`
}

type secretOutput struct {
	Secret string            `json:"secret,omitempty"`
	Hash   string            `json:"hash"`
	Usage  map[string]string `json:"usage"`
}

func main() {
	// Subcommands
	tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)
	secretCmd := flag.NewFlagSet("secret", flag.ExitOnError)

	// Token flags
	tokenAdminID := tokenCmd.String("admin-id", defaultAdminID, "Admin identifier embedded in the token")
	tokenScopes := tokenCmd.String("scopes", defaultScopes, "Comma-separated scopes")
	tokenTTL := tokenCmd.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	tokenKey := tokenCmd.String("signing-key", devSigningKey, "JWT signing key (must match the simulator's)")
	tokenIssuer := tokenCmd.String("issuer", defaultIssuer, "Token issuer")
	tokenJSON := tokenCmd.Bool("json", false, "Output as JSON")

	// Secret flags
	secretValue := secretCmd.String("secret", "", "Secret to hash. Generated if empty.")
	secretJSON := secretCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "token":
		tokenCmd.Parse(os.Args[2:])
		generateToken(*tokenAdminID, *tokenScopes, *tokenTTL, *tokenKey, *tokenIssuer, *tokenJSON)
	case "secret":
		secretCmd.Parse(os.Args[2:])
		generateSecret(*secretValue, *secretJSON)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - Generate test credentials for the vigil presence API

WARNING: Tokens minted with the default key only work against a simulator
         running with the dev signing key. Never use these in production.

Usage:
  tokengen <command> [flags]

Commands:
  token     Generate an admin console token (JWT)
  secret    Generate or hash a client secret (bcrypt)

Examples:
  # Mint a token with both presence scopes
  tokengen token

  # Read-only token for a dashboard session
  tokengen token -scopes presence:read -ttl 15m

  # Generate a fresh client secret and its bcrypt hash
  tokengen secret

  # Hash an existing secret
  tokengen secret -secret my-console-secret

  # Output as JSON
  tokengen token -json

Use "tokengen <command> -h" for more information about a command.`)
}

func generateToken(adminID, scopes string, ttl time.Duration, signingKey, issuer string, jsonOutput bool) {
	scopeList := parseScopes(scopes)

	svc := token.NewService(signingKey, issuer, ttl)

	signed, err := svc.Generate(adminID, scopeList)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		output := tokenOutput{
			Token:     signed,
			Type:      "bearer",
			ExpiresIn: ttl.String(),
			Claims: map[string]any{
				"admin_id": adminID,
				"scope":    scopeList,
				"iss":      issuer,
			},
			Usage: map[string]string{
				"header": "Authorization: Bearer <token>",
				"socket": "ws://localhost:8081/api/online-users/ws?token=<token>",
			},
		}
		printJSON(output)
	} else {
		fmt.Println("Admin Console Token (JWT)")
		fmt.Println("=========================")
		fmt.Printf("Admin ID:   %s\n", adminID)
		fmt.Printf("Scopes:     %v\n", scopeList)
		fmt.Printf("Expires In: %s\n", ttl)
		fmt.Println()
		fmt.Println("Token:")
		fmt.Println(signed)
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8081/api/online-users/stats")
	}
}

func generateSecret(secret string, jsonOutput bool) {
	generated := false
	if secret == "" {
		var err error
		secret, err = secrets.Generate()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating secret: %v\n", err)
			os.Exit(1)
		}
		generated = true
	}

	hash, err := secrets.Hash(secret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error hashing secret: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		output := secretOutput{
			Hash: hash,
			Usage: map[string]string{
				"env": "VIGIL_SIM_CLIENT_SECRET=<secret>",
			},
		}
		if generated {
			output.Secret = secret
		}
		printJSON(output)
	} else {
		fmt.Println("Client Secret")
		fmt.Println("=============")
		if generated {
			fmt.Printf("Secret: %s\n", secret)
		}
		fmt.Printf("Hash:   %s\n", hash)
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  export VIGIL_SIM_CLIENT_SECRET=<secret>")
	}
}

func parseScopes(scopes string) []string {
	if scopes == "" {
		return []string{}
	}
	parts := strings.Split(scopes, ",")
	result := make([]string, 0, len(parts))
	for _, s := range parts {
		trimmed := strings.TrimSpace(s)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
