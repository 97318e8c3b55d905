package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/abelzeko/allerta-bot/cmd/allerta/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	commands.ExecuteContext(ctx)
}
