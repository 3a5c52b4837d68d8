package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/streamqa/internal/app"
	"github.com/joho/godotenv"
)

func main() {
	// .envがなければ環境変数だけで起動する
	_ = godotenv.Load()

	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
