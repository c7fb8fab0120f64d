// Package narration delivers everything the pilot sees or hears: controller
// replies, echoes of the pilot's own calls, notices and the static cue.
package narration

// Level is the visual style of a notice
type Level string

// Notice levels
const (
	LevelError   Level = "error"
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
)

// Notice is a banner that is not a radio transmission
type Notice struct {
	Level Level  `json:"level"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Sink receives narration events
type Sink interface {
	// ATCMessage shows and speaks a controller transmission from the airport with code
	ATCMessage(code, text string)
	// PilotMessage shows the pilot's own transmission
	PilotMessage(title, text string)
	Notice(n Notice)
	PlayStatic()
}

// ATCTitle is the banner title of a controller transmission
func ATCTitle(code string) string {
	return code + " ATC"
}

// Multi fans every event out to each sink in order
type Multi []Sink

func (m Multi) ATCMessage(code, text string) {
	for _, s := range m {
		s.ATCMessage(code, text)
	}
}

func (m Multi) PilotMessage(title, text string) {
	for _, s := range m {
		s.PilotMessage(title, text)
	}
}

func (m Multi) Notice(n Notice) {
	for _, s := range m {
		s.Notice(n)
	}
}

func (m Multi) PlayStatic() {
	for _, s := range m {
		s.PlayStatic()
	}
}
