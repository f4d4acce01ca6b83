package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/collegetransit/booking-service/internal/models"
	"github.com/collegetransit/booking-service/internal/utils"
	"github.com/collegetransit/booking-service/pkg/jwt"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
)

var knownRoles = []string{models.RoleStudent, models.RoleStaff, models.RoleDriver, models.RoleAdmin}

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "dev-token",
		Usage: "Local helpers for calling the booking API",
		Commands: []*cli.Command{
			{
				Name:  "secret",
				Usage: "generate a JWT_SECRET value",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "bytes", Value: 32, Usage: "secret length in bytes"},
				},
				Action: func(c *cli.Context) error {
					secret, err := utils.GenerateSecret(c.Int("bytes"))
					if err != nil {
						return err
					}
					fmt.Printf("JWT_SECRET=%s\n", secret)
					return nil
				},
			},
			{
				Name:      "token",
				Usage:     "mint an access token signed with JWT_SECRET",
				ArgsUsage: "<user_id>",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "role", Value: cli.NewStringSlice(models.RoleStudent), Usage: "role claim, repeatable"},
					&cli.DurationFlag{Name: "expiry", Value: time.Hour, Usage: "token lifetime"},
					&cli.StringFlag{Name: "secret", EnvVars: []string{"JWT_SECRET"}, Usage: "signing secret"},
				},
				Action: func(c *cli.Context) error {
					userID := c.Args().First()
					if userID == "" {
						return cli.Exit("user_id is required", 2)
					}
					if c.String("secret") == "" {
						return cli.Exit("JWT_SECRET is not set", 2)
					}

					roles := c.StringSlice("role")
					if unknown := lo.Without(roles, knownRoles...); len(unknown) > 0 {
						return cli.Exit(fmt.Sprintf("unknown roles: %v", unknown), 2)
					}

					token, err := jwt.NewService(c.String("secret"), c.Duration("expiry")).GenerateAccessToken(userID, roles)
					if err != nil {
						return err
					}
					fmt.Println(token)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
