package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hadiudoit11/merlin/internal/cli"
)

var rootCmd = &cobra.Command{Use: "merlin"}

func main() {
	// Load .env if present; flags and env vars still win.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().String("db", os.Getenv("DATABASE_URL"), "Database connection string")
	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
