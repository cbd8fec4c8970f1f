package main

import (
	"log"
	"os"

	"quiz-session-engine/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Printf("quiz-engine: %v", err)
		os.Exit(1)
	}
}
