package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// A .env file is optional; deployments normally set variables in the
	// environment directly.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
