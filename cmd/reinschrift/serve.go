package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/spf13/cobra"

	"github.com/danst0/reinschrift/internal/app"
	"github.com/danst0/reinschrift/internal/config"
	"github.com/danst0/reinschrift/internal/server"
	"github.com/danst0/reinschrift/internal/ui"
	"github.com/danst0/reinschrift/internal/webapi"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the task list over SSH and HTTP",
		Long: `Keep one task list in memory and share it: the interactive view over SSH,
a JSON API with WebSocket updates, and a Server-Sent Events stream.
Pass an empty address to disable a listener.

Examples:
  reinschrift serve
  reinschrift serve --ssh :2222 --web "" --events ""`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String("ssh", "", "SSH listen address (default from config)")
	cmd.Flags().String("web", "", "JSON API listen address (default from config)")
	cmd.Flags().String("events", "", "Event stream listen address (default from config)")
	cmd.Flags().String("authorized-keys", "", "Only accept SSH keys listed in this file")
	cmd.Flags().Bool("dev", false, "Allow cross-origin API requests from the configured dev origin")
	return cmd
}

// listenAddr returns the flag value when set, the configured value otherwise.
func listenAddr(cmd *cobra.Command, flag, configured string) string {
	if cmd.Flags().Changed(flag) {
		v, _ := cmd.Flags().GetString(flag)
		return v
	}
	return configured
}

func runServe(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	sshAddr := listenAddr(cmd, "ssh", e.cfg.SSH.Addr)
	webAddr := listenAddr(cmd, "web", e.cfg.Web.Addr)
	eventsAddr := listenAddr(cmd, "events", e.cfg.Web.EventsAddr)
	authorized := listenAddr(cmd, "authorized-keys", e.cfg.SSH.AuthorizedKeys)
	if sshAddr == "" && webAddr == "" && eventsAddr == "" {
		return errors.New("all listeners disabled")
	}

	a := e.startApp(cmd, false)
	if e.initial.Severity == app.Error {
		e.logger.Warn("initial load failed, serving anyway", "msg", e.initial.Message)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	errCh := make(chan error, 4)
	running := 0

	poller := server.NewPoller(a, e.logger)
	running++
	go func() { errCh <- poller.Run(ctx) }()

	var sshSrv *server.Server
	if sshAddr != "" {
		keys := ui.DefaultKeyMap()
		if kb, err := config.LoadKeybindings(); err != nil {
			e.logger.Warn("ignoring keybindings file", "err", err)
		} else {
			keys = ui.ApplyKeybindingsConfig(keys, kb)
		}
		sshSrv, err = server.New(server.Config{
			Addr:               sshAddr,
			HostKeyPath:        e.cfg.SSH.HostKey,
			AuthorizedKeysPath: authorized,
			App:                a,
			Keys:               keys,
			Logger:             e.logger,
		})
		if err != nil {
			return fmt.Errorf("create SSH server: %w", err)
		}
		running++
		go func() {
			if err := sshSrv.Start(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
				errCh <- err
				return
			}
			errCh <- nil
		}()
	}

	if webAddr != "" {
		dev, _ := cmd.Flags().GetBool("dev")
		api := webapi.New(webapi.Config{
			Addr:      webAddr,
			App:       a,
			Events:    e.emitter,
			History:   e.db,
			Logger:    e.logger,
			DevMode:   dev,
			DevOrigin: e.cfg.Web.DevOrigin,
		})
		running++
		go func() { errCh <- api.Start(ctx) }()
	}

	var httpSrv *server.HTTPServer
	if eventsAddr != "" {
		httpSrv = server.NewHTTPServer(eventsAddr, e.emitter, e.logger)
		running++
		go func() { errCh <- httpSrv.Start() }()
	}

	fmt.Println()
	if sshAddr != "" {
		fmt.Printf("  SSH:    ssh -p %s localhost\n", portOf(sshAddr))
	}
	if webAddr != "" {
		fmt.Printf("  API:    http://localhost:%s/tasks\n", portOf(webAddr))
	}
	if eventsAddr != "" {
		fmt.Printf("  Events: http://localhost:%s/events/stream\n", portOf(eventsAddr))
	}
	fmt.Println()

	var runErr error
	select {
	case <-ctx.Done():
		e.logger.Info("shutting down")
	case runErr = <-errCh:
		running--
		if runErr != nil {
			e.logger.Error("server error", "err", runErr)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if sshSrv != nil {
		if err := sshSrv.Shutdown(shutdownCtx); err != nil {
			e.logger.Warn("SSH shutdown", "err", err)
		}
	}
	if httpSrv != nil {
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			e.logger.Warn("event stream shutdown", "err", err)
		}
	}
	for ; running > 0; running-- {
		select {
		case <-errCh:
		case <-shutdownCtx.Done():
			return runErr
		}
	}
	return runErr
}

// portOf returns the port part of a listen address like ":2222".
func portOf(addr string) string {
	if _, port, err := net.SplitHostPort(addr); err == nil {
		return port
	}
	return addr
}
