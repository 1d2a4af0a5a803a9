// Command bootstrap-admin seeds the first Admin account and prints its api key.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xhashpass/authworker/internal/auth"
	"github.com/xhashpass/authworker/internal/model"
	"github.com/xhashpass/authworker/internal/repository"
	"github.com/xhashpass/authworker/internal/service"
	"github.com/xhashpass/authworker/internal/validation"
)

type output struct {
	UserID           string `json:"user_id"`
	Email            string `json:"email"`
	APIKey           string `json:"api_key"`
	SubscriptionType string `json:"subscription_type"`
}

type options struct {
	fullName string
	email    string
	password string
	tier     string
	format   string
}

// adminCreator is the slice of the identity service the command needs.
type adminCreator interface {
	CreateUser(ctx context.Context, in validation.RegistrationInput) (*service.CreateUserResult, error)
	SetSubscription(ctx context.Context, userID uuid.UUID, tier string) error
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		keyEnv      = flag.String("key-env", envOr("API_KEY_ENV", auth.EnvLive), "API key environment: live or test")
		migrate     = flag.Bool("migrate", false, "Apply migrations before seeding")
		opts        options
	)
	flag.StringVar(&opts.fullName, "name", "Administrator", "Full name of the admin")
	flag.StringVar(&opts.email, "email", "", "Admin email")
	flag.StringVar(&opts.password, "password", os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"), "Admin password")
	flag.StringVar(&opts.tier, "tier", "Enterprise", "Subscription tier: Free, Pro, Premium or Enterprise")
	flag.StringVar(&opts.format, "format", "plain", "Output format: plain or json")
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if *migrate {
		if err := repository.Migrate(*databaseURL); err != nil {
			fmt.Fprintln(os.Stderr, "migrate database:", err)
			os.Exit(1)
		}
	}

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	identity := service.NewIdentity(service.Deps{
		Store:  repo,
		Hasher: auth.NewHasher(auth.DefaultParams),
		KeyEnv: *keyEnv,
	})

	if err := run(ctx, identity, opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, identity adminCreator, opts options, stdout io.Writer) error {
	format := strings.ToLower(opts.format)
	if format != "plain" && format != "json" {
		return errors.New("invalid format; use plain or json")
	}
	if opts.email == "" || opts.password == "" {
		return errors.New("email and password are required")
	}
	if opts.tier == "" {
		opts.tier = "Free"
	}
	tier, err := validation.ValidateSubscription(opts.tier)
	if err != nil {
		return fmt.Errorf("invalid tier: %w", err)
	}

	created, err := identity.CreateUser(ctx, validation.RegistrationInput{
		FullName: opts.fullName,
		Email:    opts.email,
		Password: opts.password,
		UserType: string(model.UserTypeAdmin),
	})
	if err != nil {
		if errors.Is(err, service.ErrConflict) {
			return fmt.Errorf("a user with email %s already exists", opts.email)
		}
		return fmt.Errorf("create admin: %w", err)
	}

	if tier != model.SubscriptionFree {
		if err := identity.SetSubscription(ctx, created.ID, string(tier)); err != nil {
			return fmt.Errorf("set subscription: %w", err)
		}
	}

	out := output{
		UserID:           created.ID.String(),
		Email:            validation.NormalizeEmail(opts.email),
		APIKey:           created.APIKey,
		SubscriptionType: string(tier),
	}

	if format == "plain" {
		_, err = fmt.Fprintln(stdout, out.APIKey)
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
