package narration

import "sync"

// Event kinds stored by Recorder
const (
	KindATC    = "atc"
	KindPilot  = "pilot"
	KindNotice = "notice"
	KindStatic = "static"
)

// Event is one recorded narration call
type Event struct {
	Kind  string `json:"kind"`
	Code  string `json:"code,omitempty"`
	Level Level  `json:"level,omitempty"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
}

// Recorder keeps narration events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) ATCMessage(code, text string) {
	r.add(Event{Kind: KindATC, Code: code, Title: ATCTitle(code), Text: text})
}

func (r *Recorder) PilotMessage(title, text string) {
	r.add(Event{Kind: KindPilot, Title: title, Text: text})
}

func (r *Recorder) Notice(n Notice) {
	r.add(Event{Kind: KindNotice, Level: n.Level, Title: n.Title, Text: n.Text})
}

func (r *Recorder) PlayStatic() {
	r.add(Event{Kind: KindStatic})
}

// Events returns a copy of everything recorded so far
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the kind of each recorded event, in order
func (r *Recorder) Kinds() []string {
	events := r.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

// Reset drops all recorded events
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
