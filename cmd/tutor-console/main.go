package main

import (
	"flag"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/millionx-hackathon/educational-voice-agent/internal/tui"
)

func main() {
	_ = godotenv.Load()

	server := os.Getenv("TUTOR_SERVER_URL")
	if server == "" {
		server = "http://localhost:8080"
	}
	var timeout time.Duration
	flag.StringVar(&server, "server", server, "Base URL of a running voice tutor server")
	flag.DurationVar(&timeout, "timeout", time.Minute, "Per-request timeout")
	flag.Parse()

	m := tui.New(tui.NewClient(server, timeout), server, timeout)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
