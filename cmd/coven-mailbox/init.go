// ABOUTME: Interactive config generation for coven-mailbox
// ABOUTME: Prompts for listeners, mailbox limits and identity source, then writes YAML

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/coven-mailbox/internal/config"
)

// initAnswers holds everything runInit asks for.
type initAnswers struct {
	HTTPAddr    string
	SocketPath  string
	Capacity    int
	Visibility  string
	Strict      bool
	Source      string
	DBPath      string
	JWTSecret   string
	Tailscale   bool
	TSHostname  string
	TSEphemeral bool
	LogLevel    string
	LogFormat   string
	Metrics     bool
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("coven-mailbox configuration setup")
	fmt.Println("=================================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	var a initAnswers

	fmt.Println("\n--- Listeners ---")
	a.SocketPath = prompt(reader, "Unix socket path (empty to disable)", filepath.Join(defaultDataPath, "mailbox.sock"))
	a.HTTPAddr = prompt(reader, "HTTP address (empty to disable)", "")

	fmt.Println("\n--- Mailbox ---")
	capacity, err := strconv.Atoi(prompt(reader, "Unread capacity", strconv.Itoa(config.DefaultCapacity)))
	if err != nil || capacity < 1 {
		return fmt.Errorf("capacity must be a positive integer")
	}
	a.Capacity = capacity
	a.Visibility = prompt(reader, "Visibility (unread_only/include_read)", config.DefaultVisibility)
	a.Strict = yes(prompt(reader, "Reject unknown recipients?", "no"))

	fmt.Println("\n--- Identity ---")
	a.Source = prompt(reader, "Identity source (system/sqlite)", config.IdentitySystem)
	a.DBPath = filepath.Join(defaultDataPath, "mailbox.db")
	if a.Source == config.IdentitySQLite {
		a.DBPath = prompt(reader, "SQLite database path", a.DBPath)
	}

	fmt.Println("\n--- Tailscale ---")
	a.Tailscale = yes(prompt(reader, "Enable Tailscale?", "no"))
	if a.Tailscale {
		a.TSHostname = prompt(reader, "Tailscale hostname", "coven-mailbox")
		a.TSEphemeral = yes(prompt(reader, "Ephemeral node?", "no"))
	}

	fmt.Println("\n--- Logging ---")
	a.LogLevel = prompt(reader, "Log level (debug/info/warn/error)", "info")
	a.LogFormat = prompt(reader, "Log format (text/json)", "text")
	a.Metrics = yes(prompt(reader, "Enable /metrics?", "yes"))

	if a.HTTPAddr != "" || a.Tailscale {
		secret, err := generateSecret()
		if err != nil {
			return err
		}
		a.JWTSecret = secret
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.OpenFile(outputFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	if err := writeConfig(f, a); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing config file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	if err := os.MkdirAll(defaultDataPath, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", defaultDataPath)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  coven-mailbox serve\n")

	return nil
}

// generateSecret returns a random base64 HS256 secret.
func generateSecret() (string, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(secretBytes), nil
}

// writeConfig renders the answers as a YAML config file.
func writeConfig(w io.Writer, a initAnswers) error {
	var cfg strings.Builder
	cfg.WriteString("# coven-mailbox configuration\n")
	cfg.WriteString("# Generated by coven-mailbox init\n\n")

	cfg.WriteString("server:\n")
	if a.HTTPAddr != "" {
		cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", a.HTTPAddr))
	}
	if a.SocketPath != "" {
		cfg.WriteString(fmt.Sprintf("  socket_path: %q\n", a.SocketPath))
	}
	cfg.WriteString("\n")

	cfg.WriteString("mailbox:\n")
	cfg.WriteString(fmt.Sprintf("  capacity: %d\n", a.Capacity))
	cfg.WriteString(fmt.Sprintf("  visibility: %q\n", a.Visibility))
	cfg.WriteString(fmt.Sprintf("  reject_unknown_recipients: %t\n", a.Strict))
	cfg.WriteString("\n")

	cfg.WriteString("identity:\n")
	cfg.WriteString(fmt.Sprintf("  source: %q\n", a.Source))
	cfg.WriteString("  cache_ttl: \"5m\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n", a.DBPath))
	cfg.WriteString("\n")

	if a.JWTSecret != "" {
		cfg.WriteString("auth:\n")
		cfg.WriteString(fmt.Sprintf("  jwt_secret: %q\n", a.JWTSecret))
		cfg.WriteString("  token_ttl: \"720h\"\n")
		cfg.WriteString("\n")
	}

	cfg.WriteString("tailscale:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", a.Tailscale))
	if a.Tailscale {
		cfg.WriteString(fmt.Sprintf("  hostname: %q\n", a.TSHostname))
		cfg.WriteString(fmt.Sprintf("  ephemeral: %t\n", a.TSEphemeral))
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", a.LogLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", a.LogFormat))
	cfg.WriteString("\n")

	cfg.WriteString("metrics:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", a.Metrics))
	cfg.WriteString("  path: \"/metrics\"\n")

	_, err := io.WriteString(w, cfg.String())
	return err
}

func yes(answer string) bool {
	answer = strings.ToLower(answer)
	return answer == "yes" || answer == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
