package main

import (
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/vislab/vislog/internal/collector"
	"github.com/vislab/vislog/internal/server"
)

func main() {
	// app data dir: platform-specific
	homeDirectory, err := os.UserHomeDir()
	if err != nil {
		log.Fatal("Failed to get user home directory:", err)
	}

	var applicationDirectory string
	switch runtime.GOOS {
	case "darwin":
		applicationDirectory = filepath.Join(homeDirectory, "Library", "Application Support", "VisLog")
	case "windows":
		applicationDirectory = filepath.Join(homeDirectory, "AppData", "Roaming", "VisLog")
	default: // linux and others
		applicationDirectory = filepath.Join(homeDirectory, ".local", "share", "VisLog")
	}
	if err := os.MkdirAll(applicationDirectory, 0o755); err != nil {
		log.Fatal("Failed to create application directory:", err)
	}
	databasePath := filepath.Join(applicationDirectory, "interactions.db")

	store, err := collector.NewStore(databasePath)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	// Get server address from environment or use default
	serverAddress := os.Getenv("VISLOG_ADDRESS")
	if serverAddress == "" {
		serverAddress = "127.0.0.1:8123"
	}

	srv := server.NewServer(store, serverAddress)
	if err := srv.Start(); err != nil {
		log.Fatal(err)
	}
}
