package main

import (
	"fmt"
	"os"

	"github.com/noah-isme/leadflow-api/internal/cli"
)

// @title Leadflow API
// @version 1.0.0
// @description Lead management for a training institute
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
