package main

import (
	"context"
	"log"
	"os"

	"github.com/nsendoda/suggestion-box/internal/server"
	"github.com/nsendoda/suggestion-box/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg, os.Stdout)

	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
	defer app.Close()

	app.Run(ctx)

}
