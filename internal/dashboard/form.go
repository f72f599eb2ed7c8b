package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/fueldash/internal/model"
)

const (
	formCity = iota
	formFuel
	formYear
)

func (m *Model) initForm() {
	m.formInputs = []textinput.Model{
		newFormInput("City: "),
		newFormInput("Fuel (Petrol/Diesel): "),
		newFormInput("Year: "),
	}
}

func newFormInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setFormFromSelection() {
	sel := m.state.Selection()
	m.formInputs[formCity].SetValue(sel.City)
	m.formInputs[formFuel].SetValue(sel.Fuel.String())
	m.formInputs[formYear].SetValue(sel.Year)
}

func (m *Model) startForm() (tea.Model, tea.Cmd) {
	m.formMode = true
	m.formError = ""
	m.setFormFromSelection()
	return m, m.setFormIndex(0)
}

func (m *Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.formMode = false
		m.formError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyForm(); err != nil {
			m.formError = err.Error()
			return m, nil
		}
		m.formMode = false
		m.formError = ""
		return m, nil
	case tea.KeyTab, tea.KeyDown:
		return m, m.setFormIndex(m.formIndex + 1)
	case tea.KeyShiftTab, tea.KeyUp:
		return m, m.setFormIndex(m.formIndex - 1)
	}
	var cmd tea.Cmd
	m.formInputs[m.formIndex], cmd = m.formInputs[m.formIndex].Update(msg)
	return m, cmd
}

func (m *Model) setFormIndex(idx int) tea.Cmd {
	count := len(m.formInputs)
	if count == 0 {
		return nil
	}
	m.formIndex = ((idx % count) + count) % count
	var cmd tea.Cmd
	for i := range m.formInputs {
		if i == m.formIndex {
			cmd = m.formInputs[i].Focus()
		} else {
			m.formInputs[i].Blur()
		}
	}
	return cmd
}

// applyForm validates every field before touching the state so a bad value
// leaves the selection unchanged.
func (m *Model) applyForm() error {
	domain := m.state.Domain()
	city := matchValue(domain.Cities, m.formInputs[formCity].Value())
	if city == "" {
		return fmt.Errorf("unknown city (available: %s)", strings.Join(domain.Cities, ", "))
	}
	fuel, err := model.ParseFuel(m.formInputs[formFuel].Value())
	if err != nil {
		return err
	}
	year := matchValue(domain.Years, m.formInputs[formYear].Value())
	if year == "" {
		return fmt.Errorf("unknown year (available: %s)", strings.Join(domain.Years, ", "))
	}
	if err := m.state.SetCity(city); err != nil {
		return err
	}
	if err := m.state.SetYear(year); err != nil {
		return err
	}
	m.state.SetFuel(fuel)
	return nil
}

func (m *Model) renderForm() string {
	lines := []string{"Selection (enter to apply, esc to cancel)"}
	for _, input := range m.formInputs {
		lines = append(lines, input.View())
	}
	if m.formError != "" {
		lines = append(lines, errorStyle.Render(m.formError))
	}
	return strings.Join(lines, "\n")
}

// matchValue returns the domain value equal to input, ignoring case and
// surrounding space, or "" when none matches.
func matchValue(values []string, input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	for _, v := range values {
		if strings.EqualFold(v, input) {
			return v
		}
	}
	return ""
}
