// Command admintoken issues a bearer token for the admin endpoints, signed
// with the configured JWT secret.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"juris-rag-go/internal/config"
	"juris-rag-go/pkg/token"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "path to the config file")
	subject := flag.String("subject", "admin", "token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.JWT.Secret == "" {
		fmt.Fprintf(os.Stderr, "%s_JWT_SECRET is not set, admin endpoints are unauthenticated\n", config.EnvPrefix)
		os.Exit(1)
	}

	signed, err := token.NewJWTManager(cfg.JWT.Secret).GenerateToken(*subject, token.RoleAdmin, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(signed)
}
