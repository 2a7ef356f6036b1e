// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/campusworks/timetabler/cmd/timetabler/config"
	"github.com/campusworks/timetabler/services/scheduler/api"
)

func runServe(cmd *cobra.Command, args []string) error {
	s, err := openStack()
	if err != nil {
		return err
	}
	defer s.Close()

	handlers, err := api.NewHandlers(s.store, s.logger.Slog())
	if err != nil {
		return err
	}

	listen := config.Global.Server.Listen
	srv := &http.Server{
		Addr:              listen,
		Handler:           api.NewRouter(handlers),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	fmt.Printf("Serving run outcomes on http://%s\n", listen)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
