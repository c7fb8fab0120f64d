package atcchat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yegors/geofs-atc/internal/ai"
	"github.com/yegors/geofs-atc/internal/airports"
	"github.com/yegors/geofs-atc/internal/controllers"
	"github.com/yegors/geofs-atc/internal/narration"
	"github.com/yegors/geofs-atc/internal/physics"
	"github.com/yegors/geofs-atc/internal/telemetry"
	"github.com/yegors/geofs-atc/internal/templating"
	"github.com/yegors/geofs-atc/internal/weather"
	"github.com/yegors/geofs-atc/pkg/logger"
)

// TelemetrySource supplies the latest aircraft state
type TelemetrySource interface {
	Latest() (telemetry.Snapshot, error)
}

// ControllerSource supplies today's controller for an airport
type ControllerSource interface {
	Today(code string) controllers.Key
	Get(key controllers.Key) (controllers.Persona, controllers.Status)
	ResolveAsync(key controllers.Key)
}

// PromptBuilder renders the intro and situational update messages
type PromptBuilder interface {
	RenderIntro(d templating.IntroData) (string, error)
	RenderUpdate(d templating.UpdateData) (string, error)
}

// METARSource supplies the latest METAR for an airport. A nil report with a
// nil error means none is available.
type METARSource interface {
	Latest(ctx context.Context, code string) (*weather.METAR, error)
}

// Options configures the talk flow
type Options struct {
	Provider    string // label for status output
	RangeKm     float64
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxHistory  int
	Guest       telemetry.Guest
}

// Deps groups the collaborators of a Service. METAR is optional.
type Deps struct {
	Airports    *airports.Registry
	Telemetry   TelemetrySource
	Controllers ControllerSource
	Prompts     PromptBuilder
	Chat        ai.ChatProvider
	Narration   narration.Sink
	METAR       METARSource
}

// Service runs pilot transmissions through the conversation for the
// contacted airport and narrates the outcome
type Service struct {
	deps      Deps
	opts      Options
	contexts  *ContextStore
	frequency *Frequency

	inFlightMu sync.Mutex
	inFlight   map[string]bool

	metarTimeout time.Duration // caps the weather lookup ahead of the chat call
	now          func() time.Time
	logger       *logger.Logger
}

// NewService creates a new ATC chat service
func NewService(deps Deps, opts Options, log *logger.Logger) *Service {
	if opts.RangeKm <= 0 {
		opts.RangeKm = 100
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Guest.Callsign == "" {
		opts.Guest.Callsign = "Foo"
	}
	if opts.Guest.Name == "" {
		opts.Guest.Name = "not known"
	}

	return &Service{
		deps:      deps,
		opts:      opts,
		contexts:  NewContextStore(opts.MaxHistory),
		frequency: NewFrequency(deps.Airports),
		inFlight:  make(map[string]bool),

		metarTimeout: 5 * time.Second,
		now:          time.Now,
		logger:       log.Named("atc-chat-service"),
	}
}

// Talk sends one pilot transmission. Every failure is narrated before it
// is returned, so callers only need the error for their own status codes.
func (s *Service) Talk(ctx context.Context, text string) (*TalkResult, error) {
	text = strings.TrimSpace(text)
	reqID := uuid.NewString()
	log := s.logger.With(logger.String("request_id", reqID))

	if text == "" {
		s.deps.Narration.Notice(narration.Notice{
			Level: narration.LevelInfo,
			Title: "Cancelled",
			Text:  "You cancelled the dialog",
		})
		return nil, ErrEmptyMessage
	}

	snap, err := s.deps.Telemetry.Latest()
	if err != nil {
		s.deps.Narration.Notice(narration.Notice{
			Level: narration.LevelError,
			Title: "No position",
			Text:  "The game has not reported the aircraft position yet.",
		})
		return nil, err
	}

	fix, mode, err := s.resolveAirport(snap)
	if err != nil {
		return nil, err
	}
	code := fix.Code()
	log = log.With(logger.String("airport", code), logger.String("mode", string(mode)))

	if fix.DistanceKm > s.opts.RangeKm {
		log.Info("Airport out of range", logger.Float64("distance_km", fix.DistanceKm))
		s.deps.Narration.PlayStatic()
		s.deps.Narration.Notice(s.outOfRangeNotice(fix, mode))
		return nil, fmt.Errorf("%w: %s is %.1f km away", ErrOutOfRange, code, fix.DistanceKm)
	}

	key := s.deps.Controllers.Today(code)
	persona, status := s.deps.Controllers.Get(key)
	if status.Closed() {
		log.Info("Airport closed", logger.String("controller_status", status.String()))
		// Nudge the registry in case nothing has asked for this airport yet
		s.deps.Controllers.ResolveAsync(key)
		msg := "Nobody is answering at " + fix.Airport.DisplayName() + " right now. Try again in a moment."
		if status == controllers.StatusFailed {
			msg = "The controller roster service is unavailable, so nobody is on duty at " +
				fix.Airport.DisplayName() + ". Try again in a minute."
		}
		s.deps.Narration.PlayStatic()
		s.deps.Narration.Notice(narration.Notice{
			Level: narration.LevelError,
			Title: code + " closed",
			Text:  msg,
		})
		return nil, fmt.Errorf("%w: %s", ErrAirportClosed, code)
	}

	if !s.acquire(code) {
		s.deps.Narration.Notice(narration.Notice{
			Level: narration.LevelWarning,
			Title: "Frequency busy",
			Text:  narration.ATCTitle(code) + " is still answering your last call.",
		})
		return nil, fmt.Errorf("%w: %s", ErrFrequencyBusy, code)
	}
	defer s.release(code)

	now := s.now()
	pilot := snap.User.Profile(s.opts.Guest, now)

	if _, err := s.contexts.EnsureInitialized(code, func() (string, error) {
		return s.deps.Prompts.RenderIntro(templating.IntroData{
			Controller: persona,
			Airport:    fix.Airport,
			Pilot:      pilot,
		})
	}); err != nil {
		log.Error("Failed to render controller intro", logger.Error(err))
		return nil, fmt.Errorf("failed to start conversation with %s: %w", code, err)
	}

	update, err := s.deps.Prompts.RenderUpdate(templating.UpdateData{
		Snapshot: snap,
		Fix:      fix,
		METAR:    s.latestMETAR(ctx, code, log),
		Time:     now,
	})
	if err != nil {
		log.Error("Failed to render situational update", logger.Error(err))
		return nil, fmt.Errorf("failed to describe aircraft state: %w", err)
	}

	s.contexts.AppendSituationalUpdate(code, update)
	s.contexts.AppendUserTurn(code, text)
	s.deps.Narration.PilotMessage(pilotTitle(snap.Aircraft, snap.User.CallsignOr(s.opts.Guest)), text)

	chatCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	reply, err := s.deps.Chat.ChatCompletion(chatCtx, s.contexts.Messages(code), ai.ChatConfig{
		Model:       s.opts.Model,
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		log.Error("Chat completion failed",
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err))
		s.deps.Narration.Notice(narration.Notice{
			Level: narration.LevelError,
			Title: "Service unavailable",
			Text:  narration.ATCTitle(code) + " did not answer. Try your call again.",
		})
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	s.contexts.AppendAssistantTurn(code, reply)
	reply = strings.TrimSpace(reply)
	s.deps.Narration.ATCMessage(code, reply)

	log.Info("ATC replied",
		logger.Duration("elapsed", time.Since(start)),
		logger.Int("context_messages", len(s.contexts.Messages(code))))

	return &TalkResult{
		RequestID:  reqID,
		Airport:    code,
		Mode:       mode,
		DistanceKm: fix.DistanceKm,
		Controller: persona.FullName(),
		Reply:      reply,
		RepliedAt:  s.now(),
	}, nil
}

// resolveAirport picks the tuned airport, or the nearest one when untuned
func (s *Service) resolveAirport(snap telemetry.Snapshot) (airports.Fix, Mode, error) {
	if code := s.frequency.Get(); code != "" {
		fix, err := s.deps.Airports.Fix(code, snap.Lat, snap.Lon)
		if err != nil {
			s.noFrequencyNotice()
			return airports.Fix{}, ModeTuned, fmt.Errorf("%w: %v", ErrNoFrequency, err)
		}
		return fix, ModeTuned, nil
	}

	fix, err := s.deps.Airports.Nearest(snap.Lat, snap.Lon)
	if err != nil {
		s.noFrequencyNotice()
		return airports.Fix{}, ModeNearest, fmt.Errorf("%w: %v", ErrNoFrequency, err)
	}
	return fix, ModeNearest, nil
}

func (s *Service) noFrequencyNotice() {
	s.deps.Narration.PlayStatic()
	s.deps.Narration.Notice(narration.Notice{
		Level: narration.LevelError,
		Title: "No frequency",
		Text:  "There is no airport to talk to.",
	})
}

func (s *Service) outOfRangeNotice(fix airports.Fix, mode Mode) narration.Notice {
	limit := fmt.Sprintf("You need to be within %.0f nautical miles (%.0f km) of the airport to contact it.",
		physics.KmToNM(s.opts.RangeKm), s.opts.RangeKm)
	text := "No airports nearby. " + limit
	if mode == ModeTuned {
		text = fmt.Sprintf("%s is %.0f km away. %s", fix.Airport.DisplayName(), fix.DistanceKm, limit)
	}
	return narration.Notice{Level: narration.LevelError, Title: "Out of range", Text: text}
}

func (s *Service) latestMETAR(ctx context.Context, code string, log *logger.Logger) *weather.METAR {
	if s.deps.METAR == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.metarTimeout)
	defer cancel()
	m, err := s.deps.METAR.Latest(ctx, code)
	if err != nil {
		// The update goes out without weather
		log.Warn("METAR unavailable", logger.Error(err))
		return nil
	}
	return m
}

func pilotTitle(aircraft, callsign string) string {
	if aircraft == "" {
		return callsign
	}
	return aircraft + ": " + callsign
}

func (s *Service) acquire(code string) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	if s.inFlight[code] {
		return false
	}
	s.inFlight[code] = true
	return true
}

func (s *Service) release(code string) {
	s.inFlightMu.Lock()
	delete(s.inFlight, code)
	s.inFlightMu.Unlock()
}

// Tune sets the frequency. An empty code returns to nearest-airport mode.
func (s *Service) Tune(code string) (airports.Airport, error) {
	if strings.TrimSpace(code) == "" {
		s.frequency.Clear()
		s.logger.Info("Frequency cleared, talking to the nearest airport")
		return airports.Airport{}, nil
	}

	ap, err := s.frequency.Tune(code)
	if err != nil {
		if errors.Is(err, airports.ErrUnknownFrequency) {
			s.deps.Narration.Notice(narration.Notice{
				Level: narration.LevelError,
				Title: "Unknown frequency",
				Text:  "There is no airport " + airports.NormalizeCode(code) + ".",
			})
		}
		return airports.Airport{}, err
	}

	s.logger.Info("Frequency tuned", logger.String("airport", ap.Code))
	s.deps.Controllers.ResolveAsync(s.deps.Controllers.Today(ap.Code))
	s.deps.Narration.Notice(narration.Notice{
		Level: narration.LevelInfo,
		Title: "Tuned to " + ap.Code,
		Text:  "You will now talk to " + ap.DisplayName() + ".",
	})
	return ap, nil
}

// Frequency returns the tuned airport code, "" in nearest mode
func (s *Service) Frequency() string {
	return s.frequency.Get()
}

// SpeechError narrates a speech recognition failure reported by the overlay
func (s *Service) SpeechError(reason string) {
	reason = strings.TrimSpace(reason)
	text := "No speech recognized. Speak up?"
	if reason != "" && reason != "no-speech" {
		text = "Speech recognition error: " + reason
	}
	s.logger.Debug("Speech recognition failed", logger.String("reason", reason))
	s.deps.Narration.Notice(narration.Notice{Level: narration.LevelError, Title: "Error", Text: text})
}

// Context returns a copy of the conversation with the airport
func (s *Service) Context(code string) (ContextView, bool) {
	code = airports.NormalizeCode(code)
	if !s.contexts.Has(code) {
		return ContextView{}, false
	}
	return ContextView{Airport: code, Messages: s.contexts.Messages(code)}, true
}

// Status summarizes the current session
func (s *Service) Status() Status {
	st := Status{
		Mode:      ModeNearest,
		Frequency: s.frequency.Get(),
		Contexts:  s.contexts.Codes(),
		Provider:  s.opts.Provider,
	}
	if st.Frequency != "" {
		st.Mode = ModeTuned
	}

	s.inFlightMu.Lock()
	st.InFlight = make([]string, 0, len(s.inFlight))
	for code := range s.inFlight {
		st.InFlight = append(st.InFlight, code)
	}
	s.inFlightMu.Unlock()
	return st
}

// Reset ends the page session: conversations and the tuned frequency go away
func (s *Service) Reset() {
	s.contexts.Reset()
	s.frequency.Clear()
	s.logger.Info("ATC session reset")
}
