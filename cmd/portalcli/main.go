package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"strings"

	"github.com/common-nighthawk/go-figure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/laborportal/authkit/apiclient"
	"github.com/laborportal/authkit/identity"
	"github.com/laborportal/authkit/internal/config"
	"github.com/laborportal/authkit/kv"
	"github.com/laborportal/authkit/session"
	"github.com/laborportal/authkit/users"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %s\n", err)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	displayAppname("portalcli")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("config.LoadConfig: %w", err)
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	ctx := context.Background()

	store, err := newStore(cfg)
	if err != nil {
		return err
	}

	storage, err := session.NewStorage(store)
	if err != nil {
		return fmt.Errorf("session.NewStorage: %w", err)
	}
	manager, err := session.NewManager(storage, session.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("session.NewManager: %w", err)
	}

	registry := prometheus.NewRegistry()
	api, err := apiclient.New(cfg.API.BaseURL, manager,
		apiclient.WithTimeout(cfg.API.Timeout),
		apiclient.WithMaxRetries(cfg.API.MaxRetries),
		apiclient.WithRetryDelay(cfg.API.RetryDelay),
		apiclient.WithMetrics(apiclient.NewMetrics(registry)),
		apiclient.WithClientLogger(logger),
		apiclient.WithForcedLogout(func() {
			fmt.Println("Your session has expired. Please log in again.")
		}),
	)
	if err != nil {
		return fmt.Errorf("apiclient.New: %w", err)
	}

	idClient, err := identity.NewClient(api, identity.WithIdentityLogger(logger))
	if err != nil {
		return fmt.Errorf("identity.NewClient: %w", err)
	}
	manager.SetRefresher(idClient)

	if err := manager.Initialize(ctx); err != nil {
		return fmt.Errorf("session initialize: %w", err)
	}

	return dispatch(ctx, manager, idClient, os.Args[1:])
}

func newStore(cfg *config.Config) (kv.Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		})
		return kv.NewRedisStore(client, cfg.Storage.KeyPrefix), nil
	case config.StorageMemory:
		return kv.NewMemoryStore(), nil
	case config.StorageFile:
		return kv.NewFileStore(cfg.Storage.FilePath)
	default:
		return nil, fmt.Errorf("unknown session storage backend %q", cfg.Storage.Backend)
	}
}

func dispatch(ctx context.Context, manager *session.Manager, idClient *identity.Client, args []string) error {
	if len(args) == 0 {
		usage()
		return nil
	}

	switch args[0] {
	case "login":
		if len(args) != 3 {
			return errors.New("usage: portalcli login <identifier> <secret>")
		}
		result, err := idClient.LoginWithCredentials(ctx, identity.LoginRequest{
			Identifier: args[1],
			Secret:     args[2],
		})
		if err != nil {
			return err
		}
		if err := manager.Login(ctx, result.User, result.Credentials); err != nil {
			return err
		}
		fmt.Printf("Logged in as %s (%s)\n", result.User.Name, strings.Join(roleLabels(result.User), ", "))
		return nil

	case "logout":
		if err := idClient.Logout(ctx); err != nil {
			fmt.Printf("Server logout failed: %s\n", err)
		}
		manager.Logout(ctx)
		fmt.Println("Logged out")
		return nil

	case "profile":
		u, err := idClient.Profile(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s <%s>\nNational ID: %s\nRoles: %s\n", u.Name, u.Email, u.NationalID, strings.Join(roleLabels(u), ", "))
		return nil

	case "status":
		state := manager.Snapshot()
		if !state.IsAuthenticated {
			fmt.Println("Not logged in")
			return nil
		}
		fmt.Printf("Logged in as %s <%s>\n", state.User.Name, state.User.Email)
		return nil

	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func roleLabels(u *users.User) []string {
	labels := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		labels = append(labels, role.Label())
	}
	return labels
}

func usage() {
	fmt.Println("Usage: portalcli <login|logout|profile|status>")
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
