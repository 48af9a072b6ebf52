// Package main provides a CLI tool for generating test tokens for the pastebin API.
// Tokens are signed with the dev key unless -key is given and will NOT work
// against a server with a real JWT_SIGNING_KEY.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	jwttoken "pastebin/internal/jwt_token"
)

const (
	// Dev signing key - matches config.go when JWT_SIGNING_KEY is not set
	devSigningKey   = "dev-secret-key-change-in-production"
	defaultIssuer   = "pastebin"
	defaultTokenTTL = 15 * time.Minute
)

type tokenOutput struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	ExpiresIn string `json:"expires_in"`
	Header    string `json:"header"`
}

func main() {
	userID := flag.String("user-id", "", "User ID. A UUID is generated if empty.")
	key := flag.String("key", devSigningKey, "HS256 signing key")
	issuer := flag.String("issuer", defaultIssuer, "Token issuer; must match JWT_ISSUER")
	ttl := flag.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	jsonOutput := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	uid := *userID
	if uid == "" {
		uid = uuid.NewString()
	}

	svc := jwttoken.NewJWTService(*key, *issuer, *ttl)
	token, err := svc.GenerateAccessToken(uid)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	if *jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(tokenOutput{
			Token:     token,
			UserID:    uid,
			ExpiresIn: ttl.String(),
			Header:    "Authorization: Bearer <token>",
		})
		return
	}

	fmt.Println("Access Token (JWT)")
	fmt.Println("==================")
	fmt.Printf("User ID:     %s\n", uid)
	fmt.Printf("Expires In:  %s\n", *ttl)
	fmt.Println()
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8080/api/v1/ratelimit/check ...")
}
