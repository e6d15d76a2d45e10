// ABOUTME: Entry point for the coven-mailbox server
// ABOUTME: Serves the shared mailbox device and manages its users and tokens

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/coven-mailbox/internal/auth"
	"github.com/2389/coven-mailbox/internal/client"
	"github.com/2389/coven-mailbox/internal/config"
	"github.com/2389/coven-mailbox/internal/gateway"
	"github.com/2389/coven-mailbox/internal/identity"
	"github.com/2389/coven-mailbox/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                                      _ _ _
  ___ _____   _____ _ __        _ __ ___   __ _(_) | |__   _____  __
 / __/ _ \ \ / / _ \ '_ \ _____| '_ ' _ \ / _' | | | '_ \ / _ \ \/ /
| (_| (_) \ V /  __/ | | |_____| | | | | | (_| | | | |_) | (_) >  <
 \___\___/ \_/ \___|_| |_|     |_| |_| |_|\__,_|_|_|_.__/ \___/_/\_\
`

// getConfigPath returns the path to the mailbox config file.
// Priority: COVEN_MAILBOX_CONFIG env var > XDG_CONFIG_HOME/coven/mailbox.yaml > ~/.config/coven/mailbox.yaml
func getConfigPath() string {
	if envPath := os.Getenv("COVEN_MAILBOX_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "mailbox.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "mailbox.yaml")
}

// getDataPath returns the path to the coven data directory.
// Priority: XDG_DATA_HOME/coven > ~/.local/share/coven
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "coven")
}

func usage() {
	fmt.Println("Usage: coven-mailbox <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                          Start the mailbox server")
	fmt.Println("  init                           Create a new config file interactively")
	fmt.Println("  token --uid UID [--ttl 720h]   Mint a bearer token for a uid")
	fmt.Println("  users add --uid UID --name N   Register a user (sqlite identity source)")
	fmt.Println("  users remove --uid UID         Remove a user")
	fmt.Println("  users list                     List registered users")
	fmt.Println("  health                         Check server health")
	fmt.Println("  stats                          Show mailbox counters")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "token":
		err = runToken(os.Args[2:])
	case "users":
		err = runUsers(ctx, os.Args[2:])
	case "health":
		err = runHealth(ctx)
	case "stats":
		err = runStats(ctx)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	if cfg.Server.HTTPAddr != "" {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	if cfg.Server.SocketPath != "" {
		green.Print("    ▶ ")
		fmt.Printf("Socket:    %s\n", cfg.Server.SocketPath)
	}
	green.Print("    ▶ ")
	fmt.Printf("Mailbox:   capacity %d, %s", cfg.Mailbox.Capacity, cfg.Mailbox.Visibility)
	if cfg.Mailbox.RejectUnknownRecipients {
		yellow.Print(" [strict recipients]")
	}
	fmt.Println()
	green.Print("    ▶ ")
	fmt.Printf("Identity:  %s\n", cfg.Identity.Source)

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	fmt.Println()

	logger.Info("starting coven-mailbox",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"socket_path", cfg.Server.SocketPath,
		"capacity", cfg.Mailbox.Capacity,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	uidFlag := fs.String("uid", "", "uid to embed in the token")
	ttlFlag := fs.Duration("ttl", 0, "token lifetime (default auth.token_ttl)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *uidFlag == "" {
		return errors.New("--uid flag is required")
	}
	uid, err := identity.ParseUID(*uidFlag)
	if err != nil {
		return err
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not configured")
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return err
	}

	ttl := cfg.Auth.TokenTTL
	if *ttlFlag > 0 {
		ttl = *ttlFlag
	}

	token, err := verifier.Generate(uid, ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Println(token)
	return nil
}

func runUsers(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: coven-mailbox users <add|remove|list>")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Database.Path == "" {
		return errors.New("database.path is not configured")
	}
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening user store: %w", err)
	}
	defer s.Close()

	return usersCommand(ctx, s, args)
}

// usersCommand runs one users subcommand against s.
func usersCommand(ctx context.Context, s store.UserStore, args []string) error {
	fs := flag.NewFlagSet("users "+args[0], flag.ContinueOnError)
	uidFlag := fs.String("uid", "", "user uid")
	nameFlag := fs.String("name", "", "display name")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	parseUID := func() (identity.UID, error) {
		if *uidFlag == "" {
			return identity.NoUID, errors.New("--uid flag is required")
		}
		return identity.ParseUID(*uidFlag)
	}

	green := color.New(color.FgGreen)

	switch args[0] {
	case "add":
		uid, err := parseUID()
		if err != nil {
			return err
		}
		if *nameFlag == "" {
			return errors.New("--name flag is required")
		}
		if err := s.CreateUser(ctx, &store.User{UID: uid, Name: *nameFlag, CreatedAt: time.Now()}); err != nil {
			return fmt.Errorf("adding user: %w", err)
		}
		green.Print("✓ ")
		fmt.Printf("added %s (uid %d)\n", *nameFlag, uid)

	case "remove":
		uid, err := parseUID()
		if err != nil {
			return err
		}
		if err := s.DeleteUser(ctx, uid); err != nil {
			return fmt.Errorf("removing user: %w", err)
		}
		green.Print("✓ ")
		fmt.Printf("removed uid %d\n", uid)

	case "list":
		users, err := s.ListUsers(ctx)
		if err != nil {
			return fmt.Errorf("listing users: %w", err)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "UID\tNAME\tCREATED")
		for _, u := range users {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", u.UID, u.Name, u.CreatedAt.Format(time.RFC3339))
		}
		return tw.Flush()

	default:
		return fmt.Errorf("unknown users command: %s", args[0])
	}
	return nil
}

// localClient reaches the configured server, preferring the unix socket.
// Over TCP it mints a short-lived token for the current uid.
func localClient(cfg *config.Config) (*client.Client, error) {
	if cfg.Server.SocketPath != "" {
		return client.New(client.Options{Socket: cfg.Server.SocketPath})
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return nil, err
	}
	token, err := verifier.Generate(identity.UID(os.Getuid()), time.Minute)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}
	return client.New(client.Options{Server: "http://" + cfg.Server.HTTPAddr, Token: token})
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	c, err := localClient(cfg)
	if err != nil {
		return err
	}
	if err := c.Health(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	fmt.Println("healthy")
	return nil
}

func runStats(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	c, err := localClient(cfg)
	if err != nil {
		return err
	}
	stats, err := c.Stats(ctx)
	if err != nil {
		return fmt.Errorf("fetching stats: %w", err)
	}

	cyan := color.New(color.FgCyan)
	cyan.Println("Mailbox")
	fmt.Printf("  unread:     %d / %d\n", stats.Unread, stats.Capacity)
	fmt.Printf("  read:       %d\n", stats.Read)
	fmt.Printf("  visibility: %s\n", stats.Visibility)
	fmt.Printf("  uptime:     %s\n", (time.Duration(stats.UptimeSeconds) * time.Second).String())
	return nil
}
