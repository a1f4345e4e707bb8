package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"life-auth/internal/mobile/actions"
	"life-auth/internal/mobile/api"
	"life-auth/internal/mobile/cli"
	"life-auth/internal/mobile/config"
	"life-auth/internal/mobile/session"
	"life-auth/internal/util"
)

func main() {
	cfg := config.LoadConfig()
	util.Init("development", cfg.LogLevel, "console")
	defer util.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := session.OpenSQLiteStorage(ctx, cfg.SessionDBPath)
	if err != nil {
		util.Fatal("Failed to open session storage", util.String("path", cfg.SessionDBPath), util.ErrorField(err))
	}
	defer storage.Close()

	store := session.NewStore(storage)
	defer store.Close()

	client := api.NewClient(cfg)
	a := actions.New(client, store, nil)
	controller := actions.NewLoginController(a, actions.NewCooldown(cfg.ResendCooldown))
	defer controller.Close()

	cli.NewApp(client, a, controller, os.Stdin, os.Stdout).Run(ctx)
}
