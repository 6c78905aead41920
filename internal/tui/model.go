// Package tui is the interactive search screen shown after ingest.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"hybridrag/internal/chunker"
	"hybridrag/internal/domain"
	"hybridrag/internal/service"
	"hybridrag/internal/tokenizer"
)

// RAGPort is the TUI-facing subset of the RAG service.
type RAGPort interface {
	Query(ctx context.Context, text string, opts service.QueryOptions) ([]domain.SearchResult, error)
}

const (
	queryTimeout = 30 * time.Second
	weightStep   = 0.1
)

type resultsMsg struct {
	query   string
	results []domain.SearchResult
	err     error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	service   RAGPort
	input     textinput.Model
	viewport  viewport.Model
	results   []domain.SearchResult
	summary   string
	status    string
	cursor    int
	ready     bool
	lastQuery string
	weight    float64
	limit     int
}

// New creates a new TUI model. weight and limit seed the search settings;
// ctrl+left/ctrl+right shift the weight toward lexical or vector scoring.
func New(svc RAGPort, summary string, weight float64, limit int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type query and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		service:  svc,
		input:    ti,
		viewport: viewport.New(0, 0),
		summary:  summary,
		status:   "Loaded. Type to search.",
		weight:   weight,
		limit:    limit,
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		// header, summary, status and one spacer
		reserved := 4 + qh
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case resultsMsg:
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.results = nil
		} else {
			m.status = fmt.Sprintf("%d results for %q (weight %.1f)", len(msg.results), msg.query, m.weight)
			m.results = msg.results
			m.cursor = 0
			m.lastQuery = msg.query
		}
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if q := strings.TrimSpace(m.input.Value()); q != "" {
				m.status = "Searching..."
				return m, m.query(q)
			}
		case "down":
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "up":
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "ctrl+left", "ctrl+right":
			delta := weightStep
			if msg.String() == "ctrl+left" {
				delta = -weightStep
			}
			// round to one decimal so repeated steps land on 0 and 1 exactly
			m.weight = min(1, max(0, float64(int((m.weight+delta)*10+0.5))/10))
			m.status = fmt.Sprintf("Hybrid weight %.1f (0 lexical, 1 vector)", m.weight)
			if m.lastQuery != "" {
				return m, m.query(m.lastQuery)
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) query(q string) tea.Cmd {
	svc, weight, limit := m.service, m.weight, m.limit
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		res, err := svc.Query(ctx, q, service.QueryOptions{Limit: limit, HybridWeight: &weight})
		return resultsMsg{query: q, results: res, err: err}
	}
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Hybrid RAG Search")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrentResult() string {
	if len(m.results) == 0 {
		return "No results yet."
	}
	r := m.results[m.cursor]
	title := fmt.Sprintf("Result %d/%d  score=%.3f  vector=%.3f  lexical=%.3f",
		m.cursor+1, len(m.results), r.Score, r.VectorScore, r.LexicalScore)
	if src, _ := r.Payload[domain.PayloadSource].(string); src != "" {
		title += "\n" + sourceStyle.Render(src)
	}
	return title + "\n\n" + highlightBestSentence(r.Text(), m.lastQuery)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sourceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

// highlightBestSentence renders the sentence sharing the most distinct
// tokens with the query in the highlight style.
func highlightBestSentence(text, query string) string {
	sentences := chunker.Sentences(text)
	if len(sentences) == 0 {
		return text
	}
	q := tokenizer.Counts(query)
	if len(q) == 0 {
		return strings.Join(sentences, " ")
	}
	best, bestScore := 0, -1
	for i, s := range sentences {
		score := 0
		for t := range tokenizer.Counts(s) {
			if _, ok := q[t]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	sentences[best] = highlightStyle.Render(sentences[best])
	return strings.Join(sentences, " ")
}
