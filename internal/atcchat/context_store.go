package atcchat

import (
	"sort"
	"sync"

	"github.com/yegors/geofs-atc/internal/ai"
)

// ContextStore keeps one append-only conversation per airport. The first
// message of every conversation is the controller introduction.
type ContextStore struct {
	mu         sync.RWMutex
	contexts   map[string][]ai.ChatMessage
	maxHistory int // 0 = unbounded
}

// minHistory fits the intro, an update and the pilot turn it is sent with
const minHistory = 3

// NewContextStore creates an empty store. With maxHistory > 0 only the
// intro and the newest maxHistory-1 messages are kept.
func NewContextStore(maxHistory int) *ContextStore {
	switch {
	case maxHistory < 0:
		maxHistory = 0
	case maxHistory > 0 && maxHistory < minHistory:
		maxHistory = minHistory
	}
	return &ContextStore{
		contexts:   make(map[string][]ai.ChatMessage),
		maxHistory: maxHistory,
	}
}

// EnsureInitialized creates the conversation for code with the intro from
// introFn unless it exists. introFn runs at most once per code and is not
// called when the conversation already exists. Reports whether it created one.
func (s *ContextStore) EnsureInitialized(code string, introFn func() (string, error)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contexts[code]; ok {
		return false, nil
	}

	intro, err := introFn()
	if err != nil {
		return false, err
	}
	s.contexts[code] = []ai.ChatMessage{{Role: ai.RoleSystem, Content: intro}}
	return true, nil
}

// AppendSituationalUpdate adds a system message describing the aircraft state
func (s *ContextStore) AppendSituationalUpdate(code, text string) bool {
	return s.append(code, ai.RoleSystem, text)
}

// AppendUserTurn adds the pilot's message
func (s *ContextStore) AppendUserTurn(code, text string) bool {
	return s.append(code, ai.RoleUser, text)
}

// AppendAssistantTurn adds the controller's reply
func (s *ContextStore) AppendAssistantTurn(code, text string) bool {
	return s.append(code, ai.RoleAssistant, text)
}

func (s *ContextStore) append(code, role, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, ok := s.contexts[code]
	if !ok {
		return false
	}

	msgs = append(msgs, ai.ChatMessage{Role: role, Content: text})
	if s.maxHistory > 0 && len(msgs) > s.maxHistory {
		drop := len(msgs) - s.maxHistory
		trimmed := make([]ai.ChatMessage, 0, s.maxHistory)
		trimmed = append(trimmed, msgs[0])
		trimmed = append(trimmed, msgs[1+drop:]...)
		msgs = trimmed
	}
	s.contexts[code] = msgs
	return true
}

// Messages returns a copy of the conversation for code, nil if none
func (s *ContextStore) Messages(code string) []ai.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs, ok := s.contexts[code]
	if !ok {
		return nil
	}
	out := make([]ai.ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}

// Has reports whether a conversation exists for code
func (s *ContextStore) Has(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.contexts[code]
	return ok
}

// Codes returns the airports with a conversation, sorted
func (s *ContextStore) Codes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	codes := make([]string, 0, len(s.contexts))
	for code := range s.contexts {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Reset forgets every conversation
func (s *ContextStore) Reset() {
	s.mu.Lock()
	s.contexts = make(map[string][]ai.ChatMessage)
	s.mu.Unlock()
}
