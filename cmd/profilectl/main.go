package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	apiclient "github.com/mkashifaslam/go-api-template/pkg/api/client"
)

type cliConfig struct {
	APIBaseURL   string `json:"api_base_url"`
	APIPrefix    string `json:"api_prefix"`
	SessionToken string `json:"session_token"`
}

var buildVersion = "dev"

const requestTimeout = 15 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "register":
		err = commandRegister(args)
	case "login":
		err = commandLogin(args)
	case "logout":
		err = commandLogout(args)
	case "health":
		err = commandHealth(args)
	case "profiles":
		err = commandProfiles(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func commandRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	name := fs.String("name", "", "Display name")
	apiBase := fs.String("api", "", "API base URL (default http://localhost:4000)")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	secret, err := readSecret(*password)
	if err != nil {
		return err
	}
	cfg, client, err := setup(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	resp, err := client.Register(ctx, *email, secret, *name)
	if err != nil {
		return err
	}
	cfg.SessionToken = client.SessionToken()
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Println(strings.ToLower(resp.Message))
	return nil
}

func commandLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default http://localhost:4000)")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	secret, err := readSecret(*password)
	if err != nil {
		return err
	}
	cfg, client, err := setup(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if _, err := client.Login(ctx, *email, secret); err != nil {
		return err
	}
	cfg.SessionToken = client.SessionToken()
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Println("login successful")
	return nil
}

func commandLogout(args []string) error {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	fs.Parse(args)

	cfg, client, err := setup("")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if _, err := client.Logout(ctx); err != nil {
		return err
	}
	cfg.SessionToken = ""
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Println("logout successful")
	return nil
}

func commandHealth(args []string) error {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	apiBase := fs.String("api", "", "API base URL")
	fs.Parse(args)

	_, client, err := setup(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	health, err := client.Health(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("status=%s\n", health.Status)
	for name, component := range health.Components {
		fmt.Printf("%s\t%v\n", name, component["status"])
	}
	return nil
}

func commandProfiles(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: profilectl profiles [list|get|update|delete]")
	}
	sub := args[0]
	switch sub {
	case "list":
		return profilesList(args[1:])
	case "get":
		return profilesGet(args[1:])
	case "update":
		return profilesUpdate(args[1:])
	case "delete":
		return profilesDelete(args[1:])
	default:
		return fmt.Errorf("unknown profiles command: %s", sub)
	}
}

func profilesList(args []string) error {
	fs := flag.NewFlagSet("profiles list", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Maximum number of profiles")
	offset := fs.Int("offset", 0, "Number of profiles to skip")
	fs.Parse(args)

	client, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	profiles, err := client.ListProfiles(ctx, *limit, *offset)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		fmt.Printf("%s\t%s\t%s\t%s\n", p.ID, p.Email, p.Name, p.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func profilesGet(args []string) error {
	fs := flag.NewFlagSet("profiles get", flag.ExitOnError)
	id := fs.String("id", "", "Profile identifier")
	fs.Parse(args)

	if strings.TrimSpace(*id) == "" {
		return errors.New("--id is required")
	}
	client, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	p, err := client.GetProfile(ctx, *id)
	if err != nil {
		return err
	}
	return printJSON(p)
}

func profilesUpdate(args []string) error {
	fs := flag.NewFlagSet("profiles update", flag.ExitOnError)
	id := fs.String("id", "", "Profile identifier")
	email := fs.String("email", "", "New email address")
	name := fs.String("name", "", "New display name")
	changePassword := fs.Bool("password", false, "Prompt for a new password")
	fs.Parse(args)

	if strings.TrimSpace(*id) == "" {
		return errors.New("--id is required")
	}
	var input apiclient.UpdateProfileInput
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "email":
			input.Email = email
		case "name":
			input.Name = name
		}
	})
	if *changePassword {
		secret, err := readSecret("")
		if err != nil {
			return err
		}
		input.Password = &secret
	}
	client, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	p, err := client.UpdateProfile(ctx, *id, input)
	if err != nil {
		return err
	}
	return printJSON(p)
}

func profilesDelete(args []string) error {
	fs := flag.NewFlagSet("profiles delete", flag.ExitOnError)
	id := fs.String("id", "", "Profile identifier")
	fs.Parse(args)

	if strings.TrimSpace(*id) == "" {
		return errors.New("--id is required")
	}
	client, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	p, err := client.DeleteProfile(ctx, *id)
	if err != nil {
		return err
	}
	fmt.Printf("profile deleted: %s (%s)\n", p.ID, p.Email)
	return nil
}

// setup loads the saved config, applies an --api override and builds a
// client carrying the saved session.
func setup(apiBase string) (cliConfig, *apiclient.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cliConfig{}, nil, err
	}
	if strings.TrimSpace(apiBase) != "" {
		cfg.APIBaseURL = apiBase
	}
	client, err := apiclient.New(cfg.APIBaseURL, apiclient.WithPrefix(cfg.APIPrefix))
	if err != nil {
		return cliConfig{}, nil, err
	}
	client.SetSessionToken(cfg.SessionToken)
	return cfg, client, nil
}

func authedClient() (*apiclient.Client, error) {
	cfg, client, err := setup("")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.SessionToken) == "" {
		return nil, errors.New("please login first using 'profilectl login'")
	}
	return client, nil
}

func readSecret(flagValue string) (string, error) {
	secret := strings.TrimSpace(flagValue)
	if secret != "" {
		return secret, nil
	}
	fmt.Print("Password: ")
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Print("\n")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(bytes), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func loadConfig() (cliConfig, error) {
	defaults := cliConfig{APIBaseURL: "http://localhost:4000", APIPrefix: "/api/v1"}
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaults, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaults.APIBaseURL
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = defaults.APIPrefix
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "profilectl", "config.json"), nil
}

func printUsage() {
	fmt.Printf("profilectl %s\n\n", buildVersion)
	fmt.Print(`Usage:
	profilectl register --email user@example.com [--password secret] [--name "Ann"] [--api http://localhost:4000]
	profilectl login --email user@example.com [--password secret] [--api http://localhost:4000]
	profilectl logout
	profilectl health [--api http://localhost:4000]
	profilectl profiles list [--limit N] [--offset N]
	profilectl profiles get --id <profile-id>
	profilectl profiles update --id <profile-id> [--email new@example.com] [--name "New"] [--password]
	profilectl profiles delete --id <profile-id>
	profilectl version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
