package tui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/go-authgate/drive-image-uploader/auth"
)

// state represents the current phase of the command.
type state int

const (
	stateWorking   state = iota
	stateSignIn          // device code shown, polling
	stateConnected       // device flow finished
	stateError           // fatal error
)

// statusKind distinguishes line types in the status log.
type statusKind int

const (
	statusOK   statusKind = iota
	statusWarn            // warning / non-fatal
	statusInfo            // neutral info
)

// statusLine is one row in the scrolling status log.
type statusLine struct {
	kind statusKind
	text string
}

// Model is the BubbleTea model for the sign-in and upload views.
type Model struct {
	state   state
	spinner spinner.Model
	width   int
	height  int

	// Device code info
	userCode     string
	verifyURL    string
	signInStatus string

	statusBar string
	errMsg    string
	onQuit    func()

	// Scrolling status log shown below the main panel
	statusLines []statusLine
}

// Lipgloss styles, defined once at package level.
var (
	styleTitleBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 2)

	styleCodeBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("228")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("228")).
			Padding(0, 2)

	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleBold = lipgloss.NewStyle().Bold(true)
)

// NewModel creates the initial TUI model. onQuit runs when the user quits
// with q, esc or ctrl+c; callers use it to cancel the running command.
func NewModel(onQuit func()) Model {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))),
	)
	return Model{
		state:   stateWorking,
		spinner: s,
		onQuit:  onQuit,
	}
}

// Init starts the spinner animation.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case msgBrowserOpened:
		if msg.err != nil {
			m.addStatus(statusWarn, fmt.Sprintf("Could not open browser: %v", msg.err))
		} else {
			m.addStatus(statusInfo, "Opened verification page")
		}
		return m, nil

	// ── command messages ─────────────────────────────────────────────────────

	case MsgDeviceCodeReady:
		m.userCode = msg.UserCode
		m.verifyURL = msg.VerificationURL
		m.state = stateSignIn
		m.addStatus(statusInfo, "Device code ready")
		return m, nil

	case MsgSignInStatus:
		m.signInStatus = msg.Status
		switch msg.Status {
		case auth.StatusConnected:
			m.state = stateConnected
			m.addStatus(statusOK, "Connected to Google Drive")
		case auth.StatusRateLimited:
			m.addStatus(statusWarn, "Server requested slower polling")
		case auth.StatusFailed, auth.StatusTimedOut:
			m.addStatus(statusWarn, "Sign-in "+msg.Status)
		}
		return m, nil

	case MsgStatusLine:
		m.statusBar = msg.Text
		return m, nil

	case MsgNotice:
		m.addStatus(statusInfo, msg.Text)
		return m, nil

	case MsgFatal:
		m.errMsg = msg.Err.Error()
		m.state = stateError
		return m, nil

	case MsgDone:
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		if m.onQuit != nil {
			m.onQuit()
		}
		return m, tea.Quit

	case "c":
		if m.state != stateSignIn {
			return m, nil
		}
		m.addStatus(statusOK, "Code copied to clipboard")
		return m, tea.SetClipboard(m.userCode)

	case "o":
		if m.state != stateSignIn {
			return m, nil
		}
		url := m.verifyURL
		return m, func() tea.Msg {
			return msgBrowserOpened{err: openBrowser(url)}
		}
	}
	return m, nil
}

// View renders the TUI.
func (m Model) View() tea.View {
	switch m.state {
	case stateConnected:
		return tea.NewView(m.viewConnected())
	case stateError:
		return tea.NewView(m.viewError())
	default:
		return tea.NewView(m.viewMain())
	}
}

// viewMain is shown while working and during the device flow.
func (m Model) viewMain() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleTitleBox.Render("  Google Drive Image Uploader  "))
	b.WriteString("\n\n")

	switch m.state {
	case stateSignIn:
		b.WriteString(styleBold.Render("Open this link to connect Google Drive:"))
		b.WriteString("\n")
		b.WriteString(m.verifyURL)
		b.WriteString("\n\n")

		b.WriteString(styleDim.Render("Enter code:"))
		b.WriteString("\n\n")

		b.WriteString(styleCodeBox.Render("  " + m.userCode + "  "))
		b.WriteString("\n\n")

		b.WriteString(m.spinner.View())
		b.WriteString(" Status: " + m.signInStatus)
		b.WriteString("\n")
		b.WriteString(styleDim.Render("c copy code · o open link · q cancel"))
		b.WriteString("\n")

	default:
		b.WriteString(m.spinner.View())
		if m.statusBar != "" {
			b.WriteString(" " + m.statusBar + "\n")
		} else {
			b.WriteString(" Working...\n")
		}
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewConnected is shown after the device flow succeeded.
func (m Model) viewConnected() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleOK.Render("  ✓ Connected to Google Drive"))
	b.WriteString("\n")
	if m.statusBar != "" {
		b.WriteString(styleDim.Render("  " + m.statusBar))
		b.WriteString("\n")
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewError is shown when a fatal error occurs.
func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleErr.Render("  ✗ Command failed"))
	b.WriteString("\n\n")
	b.WriteString(styleDim.Render("  " + m.errMsg))
	b.WriteString("\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewStatusLog renders the scrolling status log.
func (m Model) viewStatusLog() string {
	if len(m.statusLines) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")

	for _, line := range m.statusLines {
		switch line.kind {
		case statusOK:
			b.WriteString(styleOK.Render("  ✓ " + line.text))
		case statusWarn:
			b.WriteString(styleWarn.Render("  ⚠ " + line.text))
		default:
			b.WriteString(styleDim.Render("  · " + line.text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// addStatus appends a line to the status log.
func (m *Model) addStatus(kind statusKind, text string) {
	m.statusLines = append(m.statusLines, statusLine{kind: kind, text: text})
}
