package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/scanquest/orchestrator/internal/app"
	"github.com/scanquest/orchestrator/internal/auth"
	"github.com/scanquest/orchestrator/internal/logger"
	"github.com/scanquest/orchestrator/pkg/videoplayer"
)

var version = "dev"

func main() {
	port := flag.Int("port", 8081, "HTTP server port")
	dbPath := flag.String("db", "scanquest.db", "SQLite session store path")
	tokensPath := flag.String("tokens", "tokens.json", "Token catalog file")
	playerURL := flag.String("player", "http://localhost:9090", "Video player control URL")
	adminPw := flag.String("adminpw", "", "Game-master password (auto-generated if not set)")
	logLevel := flag.String("loglevel", "info", "Log level (debug, info, warn, error)")
	videoTimeout := flag.Duration("video-timeout", 5*time.Minute, "Watchdog bound on a single video playback")
	baseURL := flag.String("baseurl", "", "Base URL stations use to reach this server (auto-detected if not set)")
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `ScanQuest - live token-scanning game orchestrator

Usage:
  scanquest [options]

Options:
  -port int            HTTP server port (default 8081)
  -db string           SQLite session store path (default "scanquest.db")
  -tokens string       Token catalog file (default "tokens.json")
  -player string       Video player control URL (default "http://localhost:9090")
  -adminpw string      Game-master password (auto-generated if not set)
  -loglevel string     Log level: debug, info, warn, error (default "info")
  -video-timeout dur   Watchdog bound on a single video (default 5m)
  -baseurl string      Base URL for the station join QR (auto-detected if not set)
  -version             Show version and exit

Examples:
  scanquest                              # Run on port 8081 with tokens.json
  scanquest -tokens /data/tokens.json    # Use a custom token catalog
  scanquest -adminpw secret123           # Use a specific admin password

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("scanquest %s\n", version)
		os.Exit(0)
	}

	password := *adminPw
	if password == "" {
		password = auth.GeneratePassword()
	}
	adminAuth := auth.New(password)

	appLog := logger.NewWithLevel(logger.ParseLevel(*logLevel))

	player := videoplayer.NewHTTPClient(*playerURL, appLog)

	cfg := app.Config{
		DBPath:       *dbPath,
		TokensPath:   *tokensPath,
		BaseURL:      *baseURL,
		VideoTimeout: *videoTimeout,
	}
	a, err := app.New(appLog, cfg, player, adminAuth)
	if err != nil {
		log.Fatal("Failed to initialize application: ", err)
	}
	defer a.Close()

	addr := fmt.Sprintf(":%d", *port)
	appLog.Info("Game-master password", "password", password)

	if err := a.Run(addr); err != nil {
		log.Fatal(err)
	}
}
