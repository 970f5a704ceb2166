// Package tui is the operator console: it queries a running tutor server
// and shows what retrieval returns for a question.
package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/millionx-hackathon/educational-voice-agent/internal/api"
)

// Backend is the console-facing subset of the tutor server.
type Backend interface {
	Search(ctx context.Context, question string) ([]api.SearchHit, error)
	Ask(ctx context.Context, question string) (string, error)
}

type searchMsg struct {
	question string
	hits     []api.SearchHit
	err      error
}

type answerMsg struct {
	question string
	answer   string
	err      error
}

// Model is the Bubble Tea model for the console.
type Model struct {
	backend   Backend
	timeout   time.Duration
	input     textinput.Model
	viewport  viewport.Model
	hits      []api.SearchHit
	answer    string
	server    string
	status    string
	cursor    int
	ready     bool
	busy      bool
	lastQuery string
}

func New(backend Backend, server string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a student question and press Enter (ctrl+a for an answer)"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	if timeout <= 0 {
		timeout = time.Minute
	}
	return Model{backend: backend, timeout: timeout, input: ti, viewport: vp, server: server, status: "Connected to " + server}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) search(q string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		hits, err := m.backend.Search(ctx, q)
		return searchMsg{question: q, hits: hits, err: err}
	}
}

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		answer, err := m.backend.Ask(ctx, q)
		return answerMsg{question: q, answer: answer, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header and server, status, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case searchMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.hits = nil
		} else {
			m.status = fmt.Sprintf("%d passages for %q", len(msg.hits), msg.question)
			m.hits = msg.hits
			m.cursor = 0
			m.lastQuery = msg.question
		}
		m.answer = ""
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Answer for %q", msg.question)
			m.answer = msg.answer
		}
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if q := strings.TrimSpace(m.input.Value()); q != "" && !m.busy {
				m.busy = true
				m.status = "Searching..."
				return m, m.search(q)
			}
		case "ctrl+a":
			if q := strings.TrimSpace(m.input.Value()); q != "" && !m.busy {
				m.busy = true
				m.status = "Asking the tutor..."
				return m, m.ask(q)
			}
		case "down":
			if len(m.hits) > 0 {
				m.cursor = (m.cursor + 1) % len(m.hits)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "up":
			if len(m.hits) > 0 {
				m.cursor = (m.cursor - 1 + len(m.hits)) % len(m.hits)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Textbook Tutor Console")
	server := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.server)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + server + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrent() string {
	if m.answer != "" {
		return "Tutor answer\n\n" + m.answer
	}
	if len(m.hits) == 0 {
		return "No passages yet."
	}
	h := m.hits[m.cursor]
	title := fmt.Sprintf("Passage %d/%d  score=%.3f  %s #%d", m.cursor+1, len(m.hits), h.Score, h.Filename, h.Index)
	return title + "\n\n" + highlightBestSentence(h.Text, m.lastQuery)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// highlightBestSentence renders text with the sentence sharing the most
// words with query highlighted.
func highlightBestSentence(text, query string) string {
	idx, sentences := bestSentence(text, query)
	if idx < 0 {
		return strings.Join(sentences, " ")
	}
	sentences[idx] = highlightStyle.Render(sentences[idx])
	return strings.Join(sentences, " ")
}

// bestSentence splits text into trimmed sentences and returns the index of
// the one with the largest query overlap, or -1 when there is no query.
func bestSentence(text, query string) (int, []string) {
	if strings.TrimSpace(text) == "" {
		return -1, []string{text}
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{text}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return -1, sentences
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	return bestIdx, sentences
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
