package viewport

// Command is a viewer action that can be bound to a key.
type Command int

const (
	CommandNone Command = iota
	CommandPrevPlot
	CommandNextPlot
	CommandZoomIn
	CommandZoomOut
	CommandFit
	CommandReset
	CommandClose
)

func (c Command) String() string {
	switch c {
	case CommandPrevPlot:
		return "previous plot"
	case CommandNextPlot:
		return "next plot"
	case CommandZoomIn:
		return "zoom in"
	case CommandZoomOut:
		return "zoom out"
	case CommandFit:
		return "fit to screen"
	case CommandReset:
		return "reset zoom"
	case CommandClose:
		return "close"
	default:
		return "none"
	}
}

// keyBindings maps key names (as reported by fyne.KeyName) and typed runes
// to commands.
var keyBindings = map[string]Command{
	"Left":   CommandPrevPlot,
	"Right":  CommandNextPlot,
	"+":      CommandZoomIn,
	"=":      CommandZoomIn,
	"-":      CommandZoomOut,
	"0":      CommandFit,
	"r":      CommandReset,
	"R":      CommandReset,
	"Escape": CommandClose,
}

// CommandForKey returns the command bound to a key name or typed rune.
func CommandForKey(key string) Command {
	return keyBindings[key]
}
