package tui

// Key binding constants used in handleKey.
const (
	KeyCtrlC     = "ctrl+c"
	KeyEsc       = "esc"
	KeyEnter     = "enter"
	KeyBackspace = "backspace"
	KeyCtrlU     = "ctrl+u"
	KeyCtrlL     = "ctrl+l"
	KeyUp        = "up"
	KeyDown      = "down"
)

// Slash commands typed into the input line.
const (
	CommandConnect    = "/connect"
	CommandDisconnect = "/disconnect"
	CommandSchema     = "/schema"
	CommandHelp       = "/help"
	CommandQuit       = "/quit"
)
