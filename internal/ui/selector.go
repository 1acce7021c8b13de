package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShuqiCH3N/Elytro/internal/chain"
)

// ChainSelector is an interactive picker over the configured chains.
type ChainSelector struct {
	chains    []*chain.Config
	currentID uint64
	cursor    int
	selected  int
	active    bool
}

func NewChainSelector(chains []*chain.Config, currentID uint64) ChainSelector {
	cursor := 0
	for i, cfg := range chains {
		if cfg.ID == currentID {
			cursor = i
			break
		}
	}
	return ChainSelector{
		chains:    chains,
		currentID: currentID,
		cursor:    cursor,
		selected:  -1,
		active:    true,
	}
}

// Selected returns the chosen chain id. ok is false when the user
// cancelled.
func (s ChainSelector) Selected() (id uint64, ok bool) {
	if s.selected >= 0 && s.selected < len(s.chains) {
		return s.chains[s.selected].ID, true
	}
	return 0, false
}

func (s ChainSelector) Init() tea.Cmd {
	return nil
}

func (s ChainSelector) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if !s.active {
		return s, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "up", "k":
			if s.cursor > 0 {
				s.cursor--
			}
		case "down", "j":
			if s.cursor < len(s.chains)-1 {
				s.cursor++
			}
		case "enter":
			s.selected = s.cursor
			s.active = false
			return s, tea.Quit
		case "esc", "q", "ctrl+c":
			s.selected = -1
			s.active = false
			return s, tea.Quit
		}
	}
	return s, nil
}

func (s ChainSelector) View() string {
	if !s.active {
		return ""
	}

	var b strings.Builder
	b.WriteString(HelpStyle.Render("Switch chain (↑/↓ navigate, enter select, esc cancel)"))
	b.WriteString("\n\n")

	for i, cfg := range s.chains {
		isCursor := i == s.cursor

		if isCursor {
			b.WriteString(SelectorCursor.Render(SymbolArrow) + " ")
		} else {
			b.WriteString("  ")
		}

		label := fmt.Sprintf("%-28s", cfg.DisplayName)
		if isCursor {
			b.WriteString(SelectorActive.Render(label))
		} else {
			b.WriteString(SelectorItemStyle.Render(label))
		}

		desc := fmt.Sprintf("chain %d", cfg.ID)
		if cfg.IsTestnet {
			desc += ", testnet"
		}
		if cfg.ID == s.currentID {
			desc += " (current)"
		}
		b.WriteString(SelectorDim.Render(desc))
		b.WriteString("\n")
	}

	return b.String()
}

// RunChainSelector shows the picker and blocks until the user chooses.
func RunChainSelector(chains []*chain.Config, currentID uint64) (uint64, bool, error) {
	prog := tea.NewProgram(NewChainSelector(chains, currentID))
	final, err := prog.Run()
	if err != nil {
		return 0, false, err
	}
	sel, ok := final.(ChainSelector)
	if !ok {
		return 0, false, fmt.Errorf("unexpected model type %T", final)
	}
	id, chosen := sel.Selected()
	return id, chosen, nil
}
