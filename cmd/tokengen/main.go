// Command tokengen issues service tokens for the API.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/kirillqa17/vpn-api/internal/config"
	"github.com/kirillqa17/vpn-api/pkg/hash"
	"github.com/kirillqa17/vpn-api/pkg/jwt"
)

func main() {
	subject := flag.String("subject", "bot", "token subject (calling service name)")
	admin := flag.Bool("admin", false, "grant promo management rights")
	ttl := flag.Duration("ttl", 0, "token lifetime, 0 for no expiry")
	metricsPassword := flag.String("metrics-password", "", "print a bcrypt hash for METRICS_PASSWORD_HASH instead")
	flag.Parse()

	if *metricsPassword != "" {
		hashed, err := hash.HashPassword(*metricsPassword)
		if err != nil {
			slog.Error("hash password", "error", err)
			os.Exit(1)
		}
		fmt.Println(hashed)
		return
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		cfg, err := config.Load()
		if err != nil {
			slog.Error("JWT_SECRET is not set", "error", err)
			os.Exit(1)
		}
		secret = cfg.JWTSecret
	}

	token, err := jwt.GenerateToken(secret, *subject, *admin, *ttl)
	if err != nil {
		slog.Error("generate token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
