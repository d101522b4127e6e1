// Command token-generator mints a bearer token for the local API using the
// configured auth.jwt_secret.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/phrazzld/dayreport/internal/auth"
	"github.com/phrazzld/dayreport/internal/config"
)

func main() {
	subject := flag.String("subject", "local-client", "token subject")
	lifetime := flag.Duration("lifetime", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("auth.jwt_secret is not set; authentication is disabled")
	}

	svc, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		log.Fatalf("Failed to initialize JWT service: %v", err)
	}

	token, err := svc.GenerateToken(context.Background(), *subject, *lifetime)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}
	fmt.Println(token)
}
