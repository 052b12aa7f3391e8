// ABOUTME: Entry point for the soundboard server
// ABOUTME: Parses CLI flags, opens the audio device, and starts the server
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pheineke/soundboard/internal/audio"
	"github.com/pheineke/soundboard/internal/hub"
	"github.com/pheineke/soundboard/internal/playback"
	"github.com/pheineke/soundboard/internal/registry"
	"github.com/pheineke/soundboard/internal/server"
	"github.com/pheineke/soundboard/internal/version"
)

var (
	port      = flag.Int("port", 5000, "HTTP/WebSocket server port")
	name      = flag.String("name", "", "Server friendly name (default: hostname-soundboard)")
	uploadDir = flag.String("upload-dir", "uploads", "Directory holding sound files")
	channels  = flag.Int("channels", 32, "Maximum number of simultaneously playing sounds")
	logFile   = flag.String("log-file", "soundboard-server.log", "Log file path")
	debug     = flag.Bool("debug", false, "Enable debug logging")
	noMDNS    = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	tui       = flag.Bool("tui", false, "Show the status TUI")
)

func main() {
	flag.Parse()

	// Log to both file and stdout
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()
	log.SetOutput(io.MultiWriter(os.Stdout, f))

	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-soundboard", hostname)
	}

	if *channels < 1 {
		log.Fatalf("-channels must be at least 1, got %d", *channels)
	}
	if err := os.MkdirAll(*uploadDir, 0755); err != nil {
		log.Fatalf("error creating upload dir %s: %v", *uploadDir, err)
	}

	log.Printf("Starting %s %s: %s on port %d", version.Product, version.Version, serverName, *port)
	if *debug {
		log.Printf("Debug logging enabled")
	}
	log.Printf("Logging to: %s", *logFile)
	log.Printf("Press Ctrl-C to stop")

	device, err := playback.NewOtoDevice()
	if err != nil {
		log.Fatalf("error opening audio device: %v", err)
	}

	sounds := registry.New(audio.DecodeFile)
	pool := playback.NewPool(device, *channels)

	config := server.Config{
		Port:       *port,
		Name:       serverName,
		UploadDir:  *uploadDir,
		EnableMDNS: !*noMDNS,
		UseTUI:     *tui,
		Debug:      *debug,
	}

	srv := server.New(config, sounds, pool, hub.New(), audio.DecodeFile)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("\nReceived %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Printf("Server stopped")
}
