package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wippyai/canvas-harness/input"
)

// domKeys maps terminal keys to the key names a browser reports.
var domKeys = map[tea.KeyType]string{
	tea.KeyBackspace: input.BackspaceKey,
	tea.KeyTab:       "Tab",
	tea.KeyEsc:       "Escape",
	tea.KeyUp:        "ArrowUp",
	tea.KeyDown:      "ArrowDown",
	tea.KeyLeft:      "ArrowLeft",
	tea.KeyRight:     "ArrowRight",
	tea.KeyHome:      "Home",
	tea.KeyEnd:       "End",
	tea.KeyPgUp:      "PageUp",
	tea.KeyPgDown:    "PageDown",
	tea.KeyDelete:    "Delete",
	tea.KeyInsert:    "Insert",
}

// keyEvents translates a terminal key into the key-down / key-press pair a
// browser would emit. Printable keys and Enter produce both; everything
// else only produces key-down.
func keyEvents(msg tea.KeyMsg) []input.KeyEvent {
	switch msg.Type {
	case tea.KeyRunes:
		events := make([]input.KeyEvent, 0, 2*len(msg.Runes))
		for _, r := range msg.Runes {
			k := string(r)
			events = append(events,
				input.KeyEvent{Type: input.KeyDown, Key: k},
				input.KeyEvent{Type: input.KeyPress, Key: k})
		}
		return events
	case tea.KeySpace:
		return []input.KeyEvent{
			{Type: input.KeyDown, Key: " "},
			{Type: input.KeyPress, Key: " "},
		}
	case tea.KeyEnter:
		return []input.KeyEvent{
			{Type: input.KeyDown, Key: "Enter"},
			{Type: input.KeyPress, Key: "Enter"},
		}
	}

	if name, ok := domKeys[msg.Type]; ok {
		return []input.KeyEvent{{Type: input.KeyDown, Key: name}}
	}
	return []input.KeyEvent{{Type: input.KeyDown, Key: msg.String()}}
}

// touchType maps a left-button mouse action to a touch phase. Some
// terminals do not report the button on release, so any release qualifies.
func touchType(msg tea.MouseMsg) (input.TouchType, bool) {
	if msg.Action == tea.MouseActionRelease {
		return input.TouchEnd, true
	}
	if msg.Button != tea.MouseButtonLeft {
		return "", false
	}
	switch msg.Action {
	case tea.MouseActionPress:
		return input.TouchStart, true
	case tea.MouseActionMotion:
		return input.TouchMove, true
	default:
		return "", false
	}
}
