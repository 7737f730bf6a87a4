package main

import (
	"os"

	"github.com/joho/godotenv"

	gauntletcmder "github.com/probeworks/gauntlet/cmd/gauntlet"
)

func main() {
	_ = godotenv.Load()

	cmd := gauntletcmder.NewGauntletCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
