// settingsd is the local settings gateway for the assistant extension.
// It owns the settings document, encrypts credentials at rest, and
// serves both to the extension UI over loopback HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/deskpilot/settings-gateway/internal/api"
	"github.com/deskpilot/settings-gateway/internal/cipher"
	"github.com/deskpilot/settings-gateway/internal/config"
	"github.com/deskpilot/settings-gateway/internal/kvstore"
	"github.com/deskpilot/settings-gateway/internal/settings"
)

func main() {
	var (
		configFlag     string
		addrFlag       string
		debugFlag      bool
		ephemeralFlag  bool
		promptPassFlag bool
	)

	args := os.Args[1:]
	i := 0
	for i < len(args) {
		switch args[i] {
		case "-h", "--help":
			printHelp()
			return
		case "-c", "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: --config requires a value")
				os.Exit(1)
			}
			configFlag = args[i+1]
			i += 2
		case "-a", "--addr":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: --addr requires a value")
				os.Exit(1)
			}
			addrFlag = args[i+1]
			i += 2
		case "-d", "--debug":
			debugFlag = true
			i++
		case "--ephemeral":
			ephemeralFlag = true
			i++
		case "--prompt-passphrase":
			promptPassFlag = true
			i++
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown option: %s\n", args[i])
			os.Exit(1)
		}
	}

	// .env is optional; real env always wins.
	_ = godotenv.Load()

	cfg, err := config.Load(configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if addrFlag != "" {
		cfg.Server.Addr = addrFlag
	}
	if ephemeralFlag {
		cfg.Store.Ephemeral = true
	}

	setupLogging(cfg.Log, debugFlag)

	store, closeStore, err := buildStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer closeStore()

	ciph, err := buildCipher(cfg, promptPassFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("cipher init failed")
	}

	var opts []settings.Option
	if cfg.Migration.Strategy == config.MigrationCarryOver {
		opts = append(opts, settings.WithMigration(settings.CarryOverMigration{}))
	}
	svc := settings.New(store, ciph, opts...)

	srv := api.New(cfg.Server, svc)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}
}

func setupLogging(cfg config.LogConfig, debug bool) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func buildStore(cfg *config.Config) (kvstore.Store, func(), error) {
	if cfg.Store.Ephemeral {
		log.Warn().Msg("ephemeral store: settings will not survive a restart")
		return kvstore.NewMemoryStore(), func() {}, nil
	}

	path, err := cfg.StorePath()
	if err != nil {
		return nil, nil, err
	}
	store, err := kvstore.OpenSQLite(path)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("path", path).Msg("opened settings store")
	return store, func() { _ = store.Close() }, nil
}

func buildCipher(cfg *config.Config, promptPass bool) (cipher.Cipher, error) {
	if cfg.Cipher.Backend == config.CipherBackendKMS {
		return cipher.NewKMSCipher(context.Background(), cfg.Cipher.KMSKeyID)
	}

	if promptPass {
		key, err := readPassphrase()
		if err != nil {
			return nil, err
		}
		return cipher.NewAESGCM(key)
	}

	key, err := cipher.LoadMasterKey(cfg.Cipher.KeyEnv, cfg.Cipher.KeyringService)
	if err != nil {
		return nil, err
	}
	return cipher.NewAESGCM(key)
}

func readPassphrase() ([]byte, error) {
	fmt.Fprint(os.Stderr, "Master passphrase: ")
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}
	if len(pass) == 0 {
		return nil, fmt.Errorf("empty passphrase")
	}
	return pass, nil
}

func printHelp() {
	fmt.Print(`settingsd - settings gateway for the assistant extension

Usage: settingsd [options]

Options:
  -c, --config <file>     Config file (YAML)
  -a, --addr <addr>       Listen address (default 127.0.0.1:8787)
  -d, --debug             Debug logging
      --ephemeral         In-memory store, nothing persisted
      --prompt-passphrase Read the master passphrase from the terminal
  -h, --help              Show this help
`)
}
