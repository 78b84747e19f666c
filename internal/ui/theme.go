package ui

import (
	"image/color"

	"charm.land/lipgloss/v2"
	catppuccin "github.com/catppuccin/go"
)

type Theme struct {
	Header      lipgloss.Style
	Status      lipgloss.Style
	PanelTitle  lipgloss.Style
	PanelBorder lipgloss.Style
	PanelBody   lipgloss.Style
	Accent      lipgloss.Style
	Pass        lipgloss.Style
	Fail        lipgloss.Style
	Pending     lipgloss.Style
	Muted       lipgloss.Style
	Info        lipgloss.Style

	// Card styles the review card body. CardChars is the subject's
	// characters, Meaning and Reading tint the prompt by review type.
	Card      lipgloss.Style
	CardChars lipgloss.Style
	Meaning   lipgloss.Style
	Reading   lipgloss.Style

	ProgressFrom color.Color
	ProgressTo   color.Color
}

type palette struct {
	ink, slate, paper    color.Color
	accent, pass, fail   color.Color
	pending, muted, info color.Color
	border               color.Color
	meaning, reading     color.Color
}

func DefaultTheme() Theme {
	return ThemeForVariant("modern_arcade")
}

func ThemeForVariant(variant string) Theme {
	switch variant {
	case "cozy_clean":
		return themeFromPalette(palette{
			ink:     lipgloss.Color("#1E2430"),
			slate:   lipgloss.Color("#30394A"),
			paper:   lipgloss.Color("#F4F6FA"),
			accent:  lipgloss.Color("#86B6F6"),
			pass:    lipgloss.Color("#80C4A3"),
			fail:    lipgloss.Color("#D17A86"),
			pending: lipgloss.Color("#F2B872"),
			muted:   lipgloss.Color("#A3ACC2"),
			info:    lipgloss.Color("#86B6F6"),
			border:  lipgloss.Color("#4A5972"),
			meaning: lipgloss.Color("#3E4A66"),
			reading: lipgloss.Color("#F4F6FA"),
		})
	case "retro_terminal":
		return themeFromPalette(palette{
			ink:     lipgloss.Color("#07150A"),
			slate:   lipgloss.Color("#12301A"),
			paper:   lipgloss.Color("#C5F7C4"),
			accent:  lipgloss.Color("#9CF5A2"),
			pass:    lipgloss.Color("#9CF5A2"),
			fail:    lipgloss.Color("#FF6B6B"),
			pending: lipgloss.Color("#E5D47A"),
			muted:   lipgloss.Color("#73A17A"),
			info:    lipgloss.Color("#9CF5A2"),
			border:  lipgloss.Color("#1F5C2F"),
			meaning: lipgloss.Color("#12301A"),
			reading: lipgloss.Color("#C5F7C4"),
		})
	case "catppuccin":
		f := catppuccin.Mocha
		return themeFromPalette(palette{
			ink:     f.Base(),
			slate:   f.Surface0(),
			paper:   f.Text(),
			accent:  f.Mauve(),
			pass:    f.Green(),
			fail:    f.Red(),
			pending: f.Peach(),
			muted:   f.Overlay1(),
			info:    f.Sapphire(),
			border:  f.Surface2(),
			meaning: f.Mantle(),
			reading: f.Text(),
		})
	default:
		return themeFromPalette(palette{
			ink:     lipgloss.Color("#0E1420"),
			slate:   lipgloss.Color("#1B2740"),
			paper:   lipgloss.Color("#EAF2FF"),
			accent:  lipgloss.Color("#5EEBFF"),
			pass:    lipgloss.Color("#67F0A8"),
			fail:    lipgloss.Color("#FF6F91"),
			pending: lipgloss.Color("#FFC857"),
			muted:   lipgloss.Color("#9CAAC6"),
			info:    lipgloss.Color("#5EEBFF"),
			border:  lipgloss.Color("#4B5F8A"),
			meaning: lipgloss.Color("#2A3350"),
			reading: lipgloss.Color("#EAF2FF"),
		})
	}
}

func themeFromPalette(p palette) Theme {
	return Theme{
		Header:      lipgloss.NewStyle().Background(p.ink).Foreground(p.paper).Padding(0, 1),
		Status:      lipgloss.NewStyle().Background(p.slate).Foreground(p.paper).Padding(0, 1),
		PanelTitle:  lipgloss.NewStyle().Foreground(p.accent).Bold(true),
		PanelBorder: lipgloss.NewStyle().Foreground(p.border),
		PanelBody:   lipgloss.NewStyle().Foreground(p.paper),
		Accent:      lipgloss.NewStyle().Foreground(p.accent).Bold(true),
		Pass:        lipgloss.NewStyle().Foreground(p.pass).Bold(true),
		Fail:        lipgloss.NewStyle().Foreground(p.fail).Bold(true),
		Pending:     lipgloss.NewStyle().Foreground(p.pending),
		Muted:       lipgloss.NewStyle().Foreground(p.muted),
		Info:        lipgloss.NewStyle().Foreground(p.info),

		Card:      lipgloss.NewStyle().Foreground(p.paper),
		CardChars: lipgloss.NewStyle().Foreground(p.paper).Bold(true),
		Meaning:   lipgloss.NewStyle().Background(p.reading).Foreground(p.meaning).Bold(true),
		Reading:   lipgloss.NewStyle().Background(p.meaning).Foreground(p.reading).Bold(true),

		ProgressFrom: p.accent,
		ProgressTo:   p.pass,
	}
}
