package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/studiosync"
	"pkt.systems/studiosync/httpapi"
	"pkt.systems/studiosync/internal/appconfig"
	"pkt.systems/studiosync/internal/version"
	"pkt.systems/studiosync/schema"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the studiosync server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			serverCfg := toServerConfig(cfg)
			opts := serverOptions(cfg)

			server, err := studiosync.New(serverCfg, studiosync.ServerDeps{Logger: logger}, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			if cfg.Realtime.URL != "" {
				logger.Info("realtime client enabled", "url", cfg.Realtime.URL)
			}
			if cfg.API.BaseURL != "" {
				logger.Info("catalog refresh enabled", "base_url", cfg.API.BaseURL, "interval", cfg.API.CatalogInterval)
			}
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "override http.addr")
	return cmd
}

func serverOptions(cfg appconfig.Config) []studiosync.ServerOption {
	opts := []studiosync.ServerOption{studiosync.WithHTTP()}
	if strings.TrimSpace(cfg.Realtime.URL) != "" {
		opts = append(opts, studiosync.WithRealtime())
	}
	if strings.TrimSpace(cfg.API.BaseURL) != "" {
		opts = append(opts, studiosync.WithCatalog())
	}
	return opts
}

func toServerConfig(cfg appconfig.Config) studiosync.ServerConfig {
	return studiosync.ServerConfig{
		Service: schema.ServiceConfig{
			StateDir:    cfg.StateDir,
			TitleMax:    cfg.Service.TitleMax,
			TitleSuffix: cfg.Service.TitleSuffix,
		},
		HTTP: toHTTPConfig(cfg.HTTP),
		Persist: studiosync.PersistConfig{
			Backend:     cfg.Persist.Backend,
			SQLitePath:  cfg.Persist.SQLitePath,
			PostgresDSN: cfg.Persist.PostgresDSN,
		},
		Realtime: studiosync.RealtimeConfig{
			URL:          cfg.Realtime.URL,
			Token:        cfg.Realtime.Token,
			ReconnectMin: cfg.Realtime.ReconnectMin,
			ReconnectMax: cfg.Realtime.ReconnectMax,
			ReadTimeout:  cfg.Realtime.ReadTimeout,
		},
		Catalog: studiosync.CatalogConfig{
			BaseURL:         cfg.API.BaseURL,
			Token:           cfg.API.Token,
			Timeout:         cfg.API.Timeout,
			RefreshInterval: cfg.API.CatalogInterval,
		},
		Auth: studiosync.AuthConfig{
			JWTSecret: cfg.Auth.JWTSecret,
			Issuer:    cfg.Auth.Issuer,
		},
		PermissionMemo: cfg.Permissions.MemoSize,
		Release:        version.Release(),
	}
}

func toHTTPConfig(cfg appconfig.HTTPConfig) httpapi.Config {
	return httpapi.Config{
		Addr:             cfg.Addr,
		BaseURL:          cfg.BaseURL,
		BasePath:         cfg.BasePath,
		HubHistory:       cfg.HubHistory,
		MaxEnvelopeBytes: cfg.MaxEnvelopeBytes,
	}
}
