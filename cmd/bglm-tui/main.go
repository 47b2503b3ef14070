// Command bglm-tui is an interactive terminal UI for sampling a trained
// Bulgarian language model with different decoding policies.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tektwister/bg_language_model/lm"
	"github.com/tektwister/bg_language_model/pkg/config"
	"github.com/tektwister/bg_language_model/sampler"
	"github.com/tektwister/bg_language_model/tokenizer"
)

type styles struct {
	title  lipgloss.Style
	label  lipgloss.Style
	panel  lipgloss.Style
	dim    lipgloss.Style
	method lipgloss.Style
	err    lipgloss.Style
}

func newStyles() styles {
	brand := lipgloss.Color("81")
	subtle := lipgloss.Color("241")
	return styles{
		title:  lipgloss.NewStyle().Bold(true).Foreground(brand),
		label:  lipgloss.NewStyle().Bold(true),
		panel:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(subtle).Padding(0, 1),
		dim:    lipgloss.NewStyle().Foreground(subtle),
		method: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		err:    lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
	}
}

type genMsg struct {
	text string
	err  error
}

type model struct {
	styles     styles
	input      textinput.Model
	spin       spinner.Model
	output     viewport.Model
	langModel  *lm.LanguageModel
	cfg        *config.AppConfig
	methods    []sampler.SamplingMethod
	methodIdx  int
	generating bool
	status     string
}

func initialModel(langModel *lm.LanguageModel, cfg *config.AppConfig) model {
	ti := textinput.New()
	ti.Placeholder = "котката спи"
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))

	vp := viewport.New(80, 10)
	vp.SetContent("Press enter to generate.")

	return model{
		styles:    newStyles(),
		input:     ti,
		spin:      sp,
		output:    vp,
		langModel: langModel,
		cfg:       cfg,
		methods:   sampler.AvailableSamplers(),
	}
}

func (m model) Init() tea.Cmd {
	return m.spin.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.output.Width = msg.Width - 4
		m.output.Height = msg.Height - 8
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "tab":
			m.methodIdx = (m.methodIdx + 1) % len(m.methods)
			return m, nil
		case "enter":
			if m.generating {
				return m, nil
			}
			m.generating = true
			m.status = "generating..."
			return m, tea.Batch(m.spin.Tick, m.generate())
		}

	case genMsg:
		m.generating = false
		if msg.err != nil {
			m.status = m.styles.err.Render(msg.err.Error())
		} else {
			m.status = ""
			m.output.SetContent(msg.text)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) generate() tea.Cmd {
	prompt := m.input.Value()
	sc := sampler.NewSamplingConfig(m.methods[m.methodIdx])
	sc.Temperature = m.cfg.Temperature
	sc.TopK = m.cfg.TopK
	sc.TopP = m.cfg.TopP
	sc.BeamSize = m.cfg.BeamSize

	return func() tea.Msg {
		text, err := m.langModel.GenerateWith(prompt, sc)
		return genMsg{text: text, err: err}
	}
}

func (m model) View() string {
	header := m.styles.title.Render("bglm") + "  " +
		m.styles.dim.Render("method: ") + m.styles.method.Render(string(m.methods[m.methodIdx]))

	status := m.status
	if m.generating {
		status = m.spin.View() + " " + status
	}

	help := m.styles.dim.Render("enter: generate | tab: switch method | esc: quit")

	return fmt.Sprintf("%s\n\n%s\n\n%s\n%s\n%s\n",
		header,
		m.styles.label.Render("Prompt: ")+m.input.View(),
		m.styles.panel.Render(m.output.View()),
		status,
		help,
	)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	tok, err := tokenizer.Load(cfg.TokenizerPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load tokenizer %s: %v\n", cfg.TokenizerPath, err)
		os.Exit(1)
	}
	gpt, err := lm.LoadGPT(cfg.CheckpointPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load checkpoint %s: %v\n", cfg.CheckpointPath, err)
		os.Exit(1)
	}
	langModel, err := lm.NewLanguageModelFrom(gpt, tok, sampler.NewSamplingConfig(sampler.SamplingTopK))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	p := tea.NewProgram(initialModel(langModel, cfg), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
