package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"creditslot/internal/booking"
	"creditslot/internal/conversion"
	"creditslot/internal/event"
	"creditslot/internal/logger"
	"creditslot/internal/notify"
	"creditslot/internal/payout"
	"creditslot/internal/scheduler"
	"creditslot/internal/server"
	"creditslot/internal/user"
	"creditslot/internal/wallet"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("no-scheduler", false, "Do not run the payout scheduler in this process")
	serveCmd.Flags().Bool("no-worker", false, "Do not run the notification worker in this process")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the payout scheduler and notification worker",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	noScheduler, _ := cmd.Flags().GetBool("no-scheduler")
	noWorker, _ := cmd.Flags().GetBool("no-worker")

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := loadApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(a.cfg, server.Handlers{
		Users:       user.NewHandler(a.users),
		Conversions: conversion.NewHandler(a.conversions),
		Events:      event.NewHandler(a.events),
		Wallet:      wallet.NewHandler(a.ledger),
		Bookings:    booking.NewHandler(a.bookings),
		Payouts:     payout.NewHandler(a.payouts),
	}, server.System{
		Checks: map[string]server.Check{
			"database": a.db.PingContext,
			"redis":    func(ctx context.Context) error { return a.redis.Ping(ctx).Err() },
		},
		Queue: a.queue,
	})

	var wg sync.WaitGroup
	if !noWorker {
		worker := notify.NewWorker(a.redis, a.users, notify.NewSMTPSender(notify.SMTPConfig{
			Host:     a.cfg.SMTPHost,
			Port:     a.cfg.SMTPPort,
			User:     a.cfg.SMTPUser,
			Pass:     a.cfg.SMTPPass,
			From:     a.cfg.EmailFrom,
			FromName: a.cfg.EmailFromName,
		}))
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Start(ctx)
		}()
	}
	if !noScheduler {
		sched := scheduler.New(scheduler.Config{
			Interval: a.cfg.Payout.ScanInterval,
			Timeout:  a.cfg.Payout.ScanTimeout,
		}, scheduler.PayoutJobs(a.payouts)...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.Start(ctx)
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on port %s", a.cfg.Port)
		serverErr <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", "error", err)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err)
	}
	wg.Wait()

	logger.Info("Server stopped")
	return nil
}
