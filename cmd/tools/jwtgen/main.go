package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"cost-control-api/internal/auth"
	"cost-control-api/internal/config"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "jwtgen",
		Usage: "Issue a development bearer token the API accepts",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "sub", Value: "dev-user", Usage: "subject (user id)"},
			&cli.StringFlag{Name: "email", Value: "dev@example.com"},
			&cli.StringFlag{Name: "given-name"},
			&cli.StringFlag{Name: "family-name"},
			&cli.StringFlag{Name: "groups", Value: "ProjectManager", Usage: "comma separated: Admin, ProjectManager, Viewer"},
			&cli.DurationFlag{Name: "expiry", Usage: "token lifetime (defaults to JWT_EXPIRY)"},
			&cli.StringFlag{Name: "secret", Usage: "JWT secret (overrides JWT_SECRET env var)"},
			&cli.StringFlag{Name: "issuer", Usage: "JWT issuer (overrides JWT_ISS env var)"},
			&cli.StringFlag{Name: "audience", Usage: "JWT audience (overrides JWT_AUD env var)"},
			&cli.StringFlag{Name: "base-url", Value: "http://localhost:8080"},
		},
		Action: func(cCtx *cli.Context) error {
			cfg := config.Load()
			if v := cCtx.String("secret"); v != "" {
				cfg.JWTSecret = v
			}
			if v := cCtx.String("issuer"); v != "" {
				cfg.JWTIssuer = v
			}
			if v := cCtx.String("audience"); v != "" {
				cfg.JWTAudience = v
			}
			if v := cCtx.Duration("expiry"); v > 0 {
				cfg.JWTExpiry = v
			}

			var groups []string
			for _, g := range strings.Split(cCtx.String("groups"), ",") {
				if g = strings.TrimSpace(g); g != "" {
					groups = append(groups, g)
				}
			}

			jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpiry)
			if err := jwtManager.ValidateConfig(); err != nil {
				return err
			}
			token, err := jwtManager.GenerateToken(auth.Identity{
				Subject:    cCtx.String("sub"),
				Email:      cCtx.String("email"),
				GivenName:  cCtx.String("given-name"),
				FamilyName: cCtx.String("family-name"),
				Groups:     groups,
			})
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}

			fmt.Printf("JWT Token generated successfully!\n\n")
			fmt.Printf("Subject: %s\n", cCtx.String("sub"))
			fmt.Printf("Groups: %s\n", strings.Join(groups, ", "))
			fmt.Printf("Role: %s\n", auth.RoleFromGroups(groups))
			fmt.Printf("Expiry: %v\n", cfg.JWTExpiry)
			fmt.Printf("Issuer: %s\n", cfg.JWTIssuer)
			fmt.Printf("Audience: %s\n", cfg.JWTAudience)
			fmt.Printf("\nToken:\n%s\n\n", token)

			fmt.Printf("Usage example:\n")
			fmt.Printf("curl -H \"Authorization: Bearer %s\" %s/projects\n", token, cCtx.String("base-url"))
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
