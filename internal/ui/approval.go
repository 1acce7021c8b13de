package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShuqiCH3N/Elytro/internal/approval"
)

// ApprovalResult is the user's decision on a pending approval.
type ApprovalResult struct {
	Approved bool
	Password string
}

// ApprovalModel renders a pending approval as a card and collects the
// decision. Unlock approvals additionally collect the wallet password.
type ApprovalModel struct {
	ap       *approval.Approval
	password textinput.Model
	asking   bool
	done     bool
	result   ApprovalResult
}

func NewApprovalModel(ap *approval.Approval) ApprovalModel {
	ti := textinput.New()
	ti.Placeholder = "password"
	ti.EchoMode = textinput.EchoPassword
	ti.CharLimit = 256
	ti.Width = 40
	if ap.Type == approval.TypeUnlock {
		ti.Focus()
	}

	return ApprovalModel{
		ap:       ap,
		password: ti,
		asking:   ap.Type == approval.TypeUnlock,
	}
}

// Result returns the decision once the model has quit.
func (m ApprovalModel) Result() ApprovalResult {
	return m.result
}

func (m ApprovalModel) Init() tea.Cmd {
	if m.asking {
		return textinput.Blink
	}
	return nil
}

func (m ApprovalModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "esc", "n":
		if key.String() == "n" && m.asking && m.password.Focused() {
			break
		}
		m.result = ApprovalResult{Approved: false}
		m.done = true
		return m, tea.Quit
	case "enter":
		if m.asking {
			m.result = ApprovalResult{Approved: true, Password: m.password.Value()}
		} else {
			m.result = ApprovalResult{Approved: true}
		}
		m.done = true
		return m, tea.Quit
	case "y":
		if !m.asking {
			m.result = ApprovalResult{Approved: true}
			m.done = true
			return m, tea.Quit
		}
	}

	if m.asking {
		var cmd tea.Cmd
		m.password, cmd = m.password.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m ApprovalModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render("Approval request"))
	b.WriteString("\n\n")

	b.WriteString(LabelStyle.Render("  type    "))
	b.WriteString(ValueStyle.Render(string(m.ap.Type)))
	b.WriteString("\n")

	if m.ap.Origin != "" {
		b.WriteString(LabelStyle.Render("  origin  "))
		b.WriteString(OriginStyle.Render(m.ap.Origin))
		b.WriteString("\n")
	}

	if len(m.ap.Data) > 0 {
		keys := make([]string, 0, len(m.ap.Data))
		for k := range m.ap.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(LabelStyle.Render(fmtKey(k)))
			b.WriteString(ValueStyle.Render(fmt.Sprintf("%v", m.ap.Data[k])))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if m.asking {
		b.WriteString(PromptStyle.Render(SymbolPrompt) + " " + m.password.View())
		b.WriteString("\n\n")
		b.WriteString(HelpStyle.Render("enter unlock and approve, esc reject"))
	} else {
		b.WriteString(HelpStyle.Render("y/enter approve, n/esc reject"))
	}
	b.WriteString("\n")

	return b.String()
}

func fmtKey(k string) string {
	return fmt.Sprintf("  %-8s", k)
}

// RunApproval shows the approval and blocks until the user decides.
func RunApproval(ap *approval.Approval) (ApprovalResult, error) {
	prog := tea.NewProgram(NewApprovalModel(ap))
	final, err := prog.Run()
	if err != nil {
		return ApprovalResult{}, err
	}
	model, ok := final.(ApprovalModel)
	if !ok {
		return ApprovalResult{}, fmt.Errorf("unexpected model type %T", final)
	}
	return model.Result(), nil
}
