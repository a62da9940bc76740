package roomview

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/lipgloss"
)

// theme groups reusable styles for the room view.
type theme struct {
	header     lipgloss.Style
	headerMeta lipgloss.Style
	divider    lipgloss.Style
	floor      lipgloss.Style
	name       lipgloss.Style
	botName    lipgloss.Style
	popup      lipgloss.Style
	popupFaint lipgloss.Style
	blueScreen lipgloss.Style
	status     lipgloss.Style
	statusBusy lipgloss.Style
	statusErr  lipgloss.Style
	hint       lipgloss.Style
	inputLabel lipgloss.Style
	input      lipgloss.Style
	roomBorder lipgloss.Style
}

// spritePalette holds the xterm-256 colours sprites are painted with.
var spritePalette = []string{"203", "209", "214", "221", "114", "79", "44", "75", "141", "177", "211", "180"}

func defaultTheme() theme {
	return theme{
		header: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("96")),
		headerMeta: lipgloss.NewStyle().
			Foreground(lipgloss.Color("223")),
		divider: lipgloss.NewStyle().
			Foreground(lipgloss.Color("139")),
		floor: lipgloss.NewStyle().
			Foreground(lipgloss.Color("95")),
		name: lipgloss.NewStyle().
			Bold(true),
		botName: lipgloss.NewStyle().
			Italic(true),
		popup: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("160")),
		popupFaint: lipgloss.NewStyle().
			Foreground(lipgloss.Color("224")).
			Background(lipgloss.Color("88")),
		blueScreen: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("19")).
			Padding(2, 4),
		status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Bold(true),
		statusBusy: lipgloss.NewStyle().
			Foreground(lipgloss.Color("222")).
			Bold(true),
		statusErr: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true),
		hint: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),
		inputLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")),
		input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("139")).
			Padding(0, 1),
		roomBorder: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("96")),
	}
}

// spriteColor keeps a body asset the same colour in every viewer.
func spriteColor(body string) lipgloss.Color {
	return lipgloss.Color(spritePalette[xxhash.Sum64String(body)%uint64(len(spritePalette))])
}

// bubbleColor maps bubble opacity onto the xterm grey ramp (236 dimmest,
// 255 brightest), so fading bubbles sink into the dark background.
func bubbleColor(opacity float64) lipgloss.Color {
	opacity = max(0, min(1, opacity))
	return lipgloss.Color(strconv.Itoa(236 + int(opacity*19+0.5)))
}
