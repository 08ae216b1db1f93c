// ABOUTME: Entry point for the famlink server
// ABOUTME: Serves the family record API and provides init, token and health commands

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/famlink/internal/auth"
	"github.com/2389/famlink/internal/config"
	"github.com/2389/famlink/internal/server"
)

// Version is set at build time.
var version = "dev"

const banner = `
  __                 _ _       _
 / _| __ _ _ __ ___ | (_)_ __ | | __
| |_ / _' | '_ ' _ \| | | '_ \| |/ /
|  _| (_| | | | | | | | | | | |   <
|_|  \__,_|_| |_| |_|_|_|_| |_|_|\_\
`

// defaultTokenTTL is the lifetime of tokens minted by the token command.
const defaultTokenTTL = 30 * 24 * time.Hour

// getDataPath returns the path to the famlink data directory.
// Priority: XDG_DATA_HOME/famlink > ~/.local/share/famlink
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "famlink")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: famlink <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                       Start the API server")
		fmt.Println("  init                        Create a new config file interactively")
		fmt.Println("  token --email EMAIL [--ttl]  Mint an API token for a user")
		fmt.Println("  health                      Check server health")
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
	case "health":
		err = runHealth(ctx)
	case "version":
		fmt.Println(version)
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
	configPath := config.DefaultPath()

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
	green.Print("    ▶ ")
	fmt.Printf("Backend:   %s\n", cfg.Backend.Kind)
	green.Print("    ▶ ")
	fmt.Printf("Photos:    %s\n", cfg.Blob.Kind)
	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	} else {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	if cfg.Backend.Kind == config.BackendMemory {
		yellow.Println("    ! in-memory backend: nothing is persisted")
	}
	fmt.Println()

	logger.Info("starting famlink",
		"version", version,
		"config", configPath,
		"backend", cfg.Backend.Kind,
		"http_addr", cfg.Server.HTTPAddr,
	)

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	for _, path := range []string{"/health", "/health/ready"} {
		url := fmt.Sprintf("http://%s%s", cfg.Server.HTTPAddr, path)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unhealthy: %s status %d", path, resp.StatusCode)
		}
	}

	fmt.Println("healthy")
	return nil
}

// parseTokenArgs supports both "--flag value" and "--flag=value" formats.
func parseTokenArgs(args []string) (email string, ttl time.Duration, err error) {
	ttl = defaultTokenTTL
	for i := 0; i < len(args); i++ {
		arg := args[i]
		var name, value string
		switch {
		case strings.HasPrefix(arg, "--") && strings.Contains(arg, "="):
			name, value, _ = strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		case strings.HasPrefix(arg, "--"):
			name = strings.TrimPrefix(arg, "--")
			if i+1 >= len(args) {
				return "", 0, fmt.Errorf("--%s requires a value", name)
			}
			value = args[i+1]
			i++
		default:
			return "", 0, fmt.Errorf("unexpected argument: %s", arg)
		}

		switch name {
		case "email":
			email = strings.TrimSpace(value)
		case "ttl":
			ttl, err = time.ParseDuration(value)
			if err != nil {
				return "", 0, fmt.Errorf("parsing --ttl: %w", err)
			}
		default:
			return "", 0, fmt.Errorf("unknown flag: --%s", name)
		}
	}

	if email == "" {
		return "", 0, fmt.Errorf("--email flag is required")
	}
	if !strings.Contains(email, "@") {
		return "", 0, fmt.Errorf("%q is not an email address", email)
	}
	if ttl <= 0 {
		return "", 0, fmt.Errorf("--ttl must be positive")
	}
	return email, ttl, nil
}

// runToken mints a JWT for an email listed in the UserAccess tab.
func runToken(args []string) error {
	email, ttl, err := parseTokenArgs(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}

	token, err := verifier.Generate(email, ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	gray := color.New(color.FgHiBlack)
	gray.Fprintf(os.Stderr, "token for %s expires %s\n", email, time.Now().Add(ttl).UTC().Format("Jan 02, 2006"))
	fmt.Println(token)
	return nil
}

func generateSecret() (string, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(secretBytes), nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("famlink configuration setup")
	fmt.Println("===========================")
	fmt.Println()

	defaultDbPath := filepath.Join(getDataPath(), "workbook.db")

	outputFile := prompt(reader, "Config file path", config.DefaultPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if !yes(overwrite) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	fmt.Println("\n--- Workbook Backend ---")
	backendKind := prompt(reader, "Backend (google/sqlite/memory)", config.BackendSQLite)

	var spreadsheetID, credentialsFile, dbPath string
	switch backendKind {
	case config.BackendGoogle:
		spreadsheetID = prompt(reader, "Spreadsheet ID", "")
		credentialsFile = prompt(reader, "Service account credentials file", "")
	case config.BackendSQLite:
		dbPath = prompt(reader, "SQLite workbook path", defaultDbPath)
	}

	fmt.Println("\n--- Photo Storage ---")
	blobKind := prompt(reader, "Photo store (gcs/memory)", config.BlobMemory)
	var bucket string
	if blobKind == config.BlobGCS {
		bucket = prompt(reader, "GCS bucket", "")
	}

	fmt.Println("\n--- Tailscale Configuration ---")
	tailscaleEnabled := yes(prompt(reader, "Enable Tailscale?", "no"))
	var tsHostname string
	if tailscaleEnabled {
		tsHostname = prompt(reader, "Tailscale hostname", "famlink")
	}

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	secret, err := generateSecret()
	if err != nil {
		return err
	}

	var cfg strings.Builder
	cfg.WriteString("# famlink configuration\n")
	cfg.WriteString("# Generated by famlink init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", httpAddr))
	cfg.WriteString("  request_timeout: \"30s\"\n\n")

	cfg.WriteString("backend:\n")
	cfg.WriteString(fmt.Sprintf("  kind: %q\n", backendKind))
	if spreadsheetID != "" {
		cfg.WriteString(fmt.Sprintf("  spreadsheet_id: %q\n", spreadsheetID))
	}
	if credentialsFile != "" {
		cfg.WriteString(fmt.Sprintf("  credentials_file: %q\n", credentialsFile))
	}
	cfg.WriteString("  remote_timeout: \"10s\"\n\n")

	if dbPath != "" {
		cfg.WriteString("database:\n")
		cfg.WriteString(fmt.Sprintf("  path: %q\n", dbPath))
		cfg.WriteString("  driver: \"sqlite\"\n\n")
	}

	cfg.WriteString("blob:\n")
	cfg.WriteString(fmt.Sprintf("  kind: %q\n", blobKind))
	if bucket != "" {
		cfg.WriteString(fmt.Sprintf("  bucket: %q\n", bucket))
		if credentialsFile != "" {
			cfg.WriteString(fmt.Sprintf("  credentials_file: %q\n", credentialsFile))
		}
	}
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  jwt_secret: %q\n\n", secret))

	cfg.WriteString("tailscale:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", tailscaleEnabled))
	if tailscaleEnabled {
		cfg.WriteString(fmt.Sprintf("  hostname: %q\n", tsHostname))
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n\n", logFormat))

	cfg.WriteString("metrics:\n")
	cfg.WriteString("  enabled: true\n")
	cfg.WriteString("  path: \"/metrics\"\n")

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nNext steps:")
	fmt.Println("  famlink-admin ensure-tabs         # create the workbook tabs (sqlite)")
	fmt.Println("  famlink token --email you@x.com   # mint a token")
	fmt.Println("  famlink serve")

	return nil
}

func yes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "y"
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
