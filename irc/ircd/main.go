package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/presbrey/ircd/irc/admind"
	"github.com/presbrey/ircd/irc/config"
	"github.com/presbrey/ircd/irc/eventlog"
	"github.com/presbrey/ircd/irc/server"
)

var (
	configSource string
	debug        bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ircd",
		Short: "A small multi-client IRC server",
		Long:  `ircd accepts IRC clients over TCP and TLS and relays their messages through channels.`,
	}
	rootCmd.PersistentFlags().StringVarP(&configSource, "config", "c", "", "configuration file or URL (yaml, toml or json)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the IRC server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	serveCmd.Flags().BoolVar(&debug, "debug", false, "trace every line sent and received")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the server banner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configSource)
			if err != nil {
				return err
			}
			fmt.Println(cfg.Server.Banner)
			return nil
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configSource)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}

	rootCmd.AddCommand(serveCmd, versionCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve() error {
	cfg, err := config.Load(configSource)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if debug {
		cfg.Server.Debug = true
	}

	log.Printf("Starting %s as %s", cfg.Server.Banner, cfg.Server.Name)
	log.Printf("IRC bind address: %s", cfg.GetListenAddress())
	if cfg.TLS.Enabled {
		log.Printf("TLS IRC bind address: %s", cfg.GetTLSListenAddress())
	}
	log.Printf("Debug logging: %v", cfg.Server.Debug)

	metrics := server.NewMetrics()
	srv, err := server.NewServer(cfg, server.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	var store *eventlog.Store
	if cfg.EventLog.Enabled {
		store, err = eventlog.Open(cfg.EventLog.Driver, cfg.EventLog.DSN,
			eventlog.WithDebug(cfg.Server.Debug),
			eventlog.WithRetries(cfg.EventLog.Retries, 250*time.Millisecond))
		if err != nil {
			return err
		}
		defer store.Close()
		store.Subscribe(srv.Controller().Events())
		log.Printf("Recording events to %s", cfg.EventLog.Driver)
	}

	var admin *admind.Server
	if cfg.Admin.Enabled {
		opts := []admind.Option{admind.WithRegistry(metrics.Registry)}
		if store != nil {
			opts = append(opts, admind.WithEventSource(store))
		}
		admin = admind.New(cfg.GetAdminListenAddress(), srv.Controller(), opts...)
		go func() {
			if err := admin.Start(); err != nil {
				log.Printf("Admin server failed: %v", err)
			}
		}()
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	log.Println("IRC server started successfully!")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Println("Server is running. Press Ctrl+C to stop.")
	<-sigChan
	log.Println("Shutdown signal received, stopping server...")

	if admin != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := admin.Stop(ctx); err != nil {
			log.Printf("Error stopping admin server: %v", err)
		}
	}

	if err := srv.Stop(); err != nil {
		log.Printf("Error stopping server: %v", err)
	}

	log.Println("Server stopped. Goodbye!")
	return nil
}
