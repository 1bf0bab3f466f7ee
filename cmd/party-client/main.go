package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/weiawesome/sync-party/internal/client"
	"github.com/weiawesome/sync-party/internal/config"
	pkglog "github.com/weiawesome/sync-party/pkg/log"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "client config file")
	username := flag.String("user", "", "username (overrides config)")
	partyID := flag.String("party", "", "party to open first (overrides config)")
	flag.Parse()

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		return err
	}
	if *username != "" {
		cfg.Username = *username
	}
	if *partyID != "" {
		cfg.PartyID = *partyID
	}

	// The terminal belongs to the UI, so logs go to a file.
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	pkglog.Init(pkglog.Config{Level: cfg.LogLevel, ServiceName: "party-client", Output: logFile})
	logger := pkglog.L()

	if cfg.Username == "" {
		if cfg.Username, err = client.Prompt("username:", false); err != nil {
			return err
		}
	}
	password := os.Getenv("SYNCPARTY_PASSWORD")
	if password == "" {
		if password, err = client.Prompt("password:", true); err != nil {
			return err
		}
	}

	api, err := client.NewAPI(cfg.ServerURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	me, err := api.Login(ctx, cfg.Username, password)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Msg == "invalidCredentials" {
			return errors.New("invalid username or password")
		}
		return err
	}
	if me == nil {
		return errors.New("login response carried no user")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := api.Logout(ctx); err != nil {
			logger.Warn().Err(err).Msg("logout failed")
		}
	}()

	parties, err := api.Parties(ctx)
	if err != nil {
		return fmt.Errorf("list parties: %w", err)
	}

	conn, err := api.DialChat(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Info().Str("user", me.Username).Int("parties", len(parties)).Msg("connected")

	model := client.NewModel(conn, client.Options{
		Me:         *me,
		Parties:    parties,
		StartParty: cfg.PartyID,
		HideAfter:  cfg.HideAfter,
		History:    cfg.History,
	})
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return err
	}
	return model.Err()
}
