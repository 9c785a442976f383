package tui

// Key bindings handled by the root model. Anything else falls through to
// the focused pane's table, which scrolls on arrow keys and j/k.
const (
	keyQuit      = "q"
	keyInterrupt = "ctrl+c"
	keyNextPane  = "tab"
	keyPrevPane  = "shift+tab"
	keyTasksPane = "1"
	keyStepsPane = "2"
)

// helpBar is the static footer listing the root bindings.
func helpBar() string {
	return styleHelp.Render("tab switch pane · 1 tasks · 2 steps · j/k scroll · q quit")
}
