package atcchat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/geofs-atc/internal/ai"
	"github.com/yegors/geofs-atc/internal/airports"
	"github.com/yegors/geofs-atc/internal/controllers"
	"github.com/yegors/geofs-atc/internal/narration"
	"github.com/yegors/geofs-atc/internal/telemetry"
	"github.com/yegors/geofs-atc/internal/templating"
	"github.com/yegors/geofs-atc/internal/weather"
	"github.com/yegors/geofs-atc/pkg/logger"
)

var testAirports = []airports.Airport{
	{Code: "KJFK", Name: "John F Kennedy International Airport", Lat: 40.6413, Lon: -73.7781, ElevationFt: 13},
	{Code: "KLGA", Name: "LaGuardia Airport", Lat: 40.7769, Lon: -73.8740, ElevationFt: 21},
	{Code: "EGLL", Name: "London Heathrow Airport", Lat: 51.4700, Lon: -0.4543, ElevationFt: 83},
}

var liam = controllers.Persona{FirstName: "Liam", LastName: "Walker", Age: 41, Gender: "male", Nationality: "NZ"}

type fakeTelemetry struct {
	mu   sync.Mutex
	snap telemetry.Snapshot
	err  error
}

func (f *fakeTelemetry) Latest() (telemetry.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, f.err
}

func (f *fakeTelemetry) set(snap telemetry.Snapshot) {
	f.mu.Lock()
	f.snap, f.err = snap, nil
	f.mu.Unlock()
}

type fakeControllers struct {
	mu       sync.Mutex
	personas map[string]controllers.Persona
	failed   bool
	async    []string
}

func (f *fakeControllers) Today(code string) controllers.Key {
	return controllers.Key{Code: code, Date: "2025-07-01"}
}

func (f *fakeControllers) Get(key controllers.Key) (controllers.Persona, controllers.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.personas[key.Code]; ok {
		return p, controllers.StatusResolved
	}
	if f.failed {
		return controllers.Persona{}, controllers.StatusFailed
	}
	return controllers.Persona{}, controllers.StatusPending
}

func (f *fakeControllers) ResolveAsync(key controllers.Key) {
	f.mu.Lock()
	f.async = append(f.async, key.Code)
	f.mu.Unlock()
}

type fakeChat struct {
	mu      sync.Mutex
	calls   [][]ai.ChatMessage
	reply   string
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeChat) ChatCompletion(ctx context.Context, messages []ai.ChatMessage, _ ai.ChatConfig) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, messages)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func (f *fakeChat) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeMETAR struct {
	report *weather.METAR
	err    error
	hang   bool // wait for the context to end
}

func (f *fakeMETAR) Latest(ctx context.Context, _ string) (*weather.METAR, error) {
	if f.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.report, f.err
}

type harness struct {
	svc         *Service
	telemetry   *fakeTelemetry
	controllers *fakeControllers
	chat        *fakeChat
	rec         *narration.Recorder
}

func newHarness(t *testing.T, metar METARSource) *harness {
	t.Helper()
	h := &harness{
		telemetry: &fakeTelemetry{},
		controllers: &fakeControllers{personas: map[string]controllers.Persona{
			"KJFK": liam,
			"KLGA": liam,
		}},
		chat: &fakeChat{reply: "Foo, Kennedy Ground, taxi to runway 22R via B."},
		rec:  narration.NewRecorder(),
	}
	h.telemetry.set(atJFK())

	h.svc = NewService(Deps{
		Airports:    airports.NewRegistry(testAirports),
		Telemetry:   h.telemetry,
		Controllers: h.controllers,
		Prompts:     templating.NewEngine("", false, logger.NewNop()),
		Chat:        h.chat,
		Narration:   h.rec,
		METAR:       metar,
	}, Options{Model: "test-model", RangeKm: 100, Timeout: 2 * time.Second}, logger.NewNop())
	return h
}

func atJFK() telemetry.Snapshot {
	return telemetry.Snapshot{
		Lat: 40.6420, Lon: -73.7790, GroundContact: true,
		AltitudeFt: 13, GroundElevationFt: 13,
		Aircraft: "Cessna 172",
	}
}

func TestTalkHappyPath(t *testing.T) {
	h := newHarness(t, nil)

	res, err := h.svc.Talk(context.Background(), "  Kennedy ground, request taxi  ")
	require.NoError(t, err)
	assert.Equal(t, "KJFK", res.Airport)
	assert.Equal(t, ModeNearest, res.Mode)
	assert.Equal(t, "Liam Walker", res.Controller)
	assert.NotEmpty(t, res.RequestID)

	msgs := h.svc.contexts.Messages("KJFK")
	require.Len(t, msgs, 4)
	assert.Equal(t, ai.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "You are Liam Walker")
	assert.Contains(t, msgs[0].Content, "callsign (Foo)")
	assert.Equal(t, ai.RoleSystem, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "The pilot is flying Cessna 172")
	assert.Equal(t, ai.ChatMessage{Role: ai.RoleUser, Content: "Kennedy ground, request taxi"}, msgs[2])
	assert.Equal(t, ai.RoleAssistant, msgs[3].Role)

	// The provider saw everything up to the pilot turn
	require.Equal(t, 1, h.chat.callCount())
	assert.Len(t, h.chat.calls[0], 3)

	events := h.rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, narration.KindPilot, events[0].Kind)
	assert.Equal(t, "Cessna 172: Foo", events[0].Title)
	assert.Equal(t, narration.KindATC, events[1].Kind)
	assert.Equal(t, "KJFK ATC", events[1].Title)
}

func TestSecondTalkReusesIntro(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.Talk(context.Background(), "request taxi")
	require.NoError(t, err)
	_, err = h.svc.Talk(context.Background(), "ready for departure")
	require.NoError(t, err)

	msgs := h.svc.contexts.Messages("KJFK")
	require.Len(t, msgs, 7)
	systemIntros := 0
	for _, m := range msgs {
		if m.Role == ai.RoleSystem && m.Content == msgs[0].Content {
			systemIntros++
		}
	}
	assert.Equal(t, 1, systemIntros)
	assert.Equal(t, "ready for departure", msgs[5].Content)
}

func TestTalkOutOfRange(t *testing.T) {
	h := newHarness(t, nil)
	snap := atJFK()
	snap.Lat = 42.5
	h.telemetry.set(snap)

	_, err := h.svc.Talk(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, []string{narration.KindStatic, narration.KindNotice}, h.rec.Kinds())
	assert.Equal(t, "Out of range", h.rec.Events()[1].Title)
	assert.Contains(t, h.rec.Events()[1].Text, "within 54 nautical miles (100 km)")
	assert.Empty(t, h.svc.contexts.Codes())
	assert.Zero(t, h.chat.callCount())
}

func TestTalkAirportClosed(t *testing.T) {
	h := newHarness(t, nil)
	h.controllers.personas = map[string]controllers.Persona{}

	_, err := h.svc.Talk(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrAirportClosed)
	assert.Equal(t, []string{narration.KindStatic, narration.KindNotice}, h.rec.Kinds())
	assert.Equal(t, []string{"KJFK"}, h.controllers.async)
	assert.Empty(t, h.svc.contexts.Codes())
	assert.Zero(t, h.chat.callCount())
}

func TestTalkRosterFailureSaysWhy(t *testing.T) {
	h := newHarness(t, nil)
	h.controllers.personas = map[string]controllers.Persona{}
	h.controllers.failed = true

	_, err := h.svc.Talk(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrAirportClosed)
	events := h.rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "KJFK closed", events[1].Title)
	assert.Contains(t, events[1].Text, "roster service is unavailable")
}

func TestTalkKeepsReplyVerbatimInContext(t *testing.T) {
	h := newHarness(t, nil)
	h.chat.reply = "  Foo, Kennedy Ground, hold short runway 31L.\n"

	res, err := h.svc.Talk(context.Background(), "request taxi")
	require.NoError(t, err)

	msgs := h.svc.contexts.Messages("KJFK")
	require.Len(t, msgs, 4)
	assert.Equal(t, "  Foo, Kennedy Ground, hold short runway 31L.\n", msgs[3].Content)
	assert.Equal(t, "Foo, Kennedy Ground, hold short runway 31L.", h.rec.Events()[1].Text)
	assert.Equal(t, "Foo, Kennedy Ground, hold short runway 31L.", res.Reply)
}

func TestTalkSlowMETARIsCutShort(t *testing.T) {
	h := newHarness(t, &fakeMETAR{hang: true})
	h.svc.metarTimeout = 20 * time.Millisecond

	start := time.Now()
	_, err := h.svc.Talk(context.Background(), "request taxi")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.NotContains(t, h.svc.contexts.Messages("KJFK")[1].Content, "METAR")
}

func TestTalkServiceUnavailableKeepsTransmittedTurns(t *testing.T) {
	h := newHarness(t, nil)
	h.chat.err = &ai.StatusError{StatusCode: 503, Body: "overloaded"}

	_, err := h.svc.Talk(context.Background(), "request taxi")
	assert.ErrorIs(t, err, ErrServiceUnavailable)

	msgs := h.svc.contexts.Messages("KJFK")
	require.Len(t, msgs, 3)
	assert.Equal(t, ai.RoleUser, msgs[2].Role)
	assert.Equal(t, []string{narration.KindPilot, narration.KindNotice}, h.rec.Kinds())
	assert.Equal(t, "Service unavailable", h.rec.Events()[1].Title)
}

func TestTalkEmptyMessage(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.Talk(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	events := h.rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, narration.LevelInfo, events[0].Level)
	assert.Zero(t, h.chat.callCount())
}

func TestTalkWithoutTelemetry(t *testing.T) {
	h := newHarness(t, nil)
	h.telemetry.err = telemetry.ErrNoTelemetry

	_, err := h.svc.Talk(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoTelemetry)
	assert.Equal(t, []string{narration.KindNotice}, h.rec.Kinds())
}

func TestTalkFrequencyBusy(t *testing.T) {
	h := newHarness(t, nil)
	h.chat.started = make(chan struct{}, 1)
	h.chat.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.svc.Talk(context.Background(), "first call")
		done <- err
	}()
	<-h.chat.started

	_, err := h.svc.Talk(context.Background(), "second call")
	assert.ErrorIs(t, err, ErrFrequencyBusy)
	assert.Equal(t, []string{"KJFK"}, h.svc.Status().InFlight)
	// The rejected call never touched the conversation
	assert.Len(t, h.svc.contexts.Messages("KJFK"), 3)

	close(h.chat.release)
	require.NoError(t, <-done)
	assert.Empty(t, h.svc.Status().InFlight)
	assert.Len(t, h.svc.contexts.Messages("KJFK"), 4)
}

func TestTunedMode(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.Tune("zzzz")
	assert.ErrorIs(t, err, airports.ErrUnknownFrequency)
	assert.Empty(t, h.svc.Frequency())

	ap, err := h.svc.Tune("klga")
	require.NoError(t, err)
	assert.Equal(t, "KLGA", ap.Code)
	assert.Equal(t, ModeTuned, h.svc.Status().Mode)
	assert.Contains(t, h.controllers.async, "KLGA")

	res, err := h.svc.Talk(context.Background(), "LaGuardia tower, hello")
	require.NoError(t, err)
	assert.Equal(t, "KLGA", res.Airport)
	assert.Equal(t, ModeTuned, res.Mode)
	assert.Greater(t, res.DistanceKm, 1.0)

	_, err = h.svc.Tune("EGLL")
	require.NoError(t, err)
	h.rec.Reset()
	_, err = h.svc.Talk(context.Background(), "hello London")
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Contains(t, h.rec.Events()[1].Text, "London Heathrow Airport (EGLL) is")

	_, err = h.svc.Tune("")
	require.NoError(t, err)
	assert.Equal(t, ModeNearest, h.svc.Status().Mode)
}

func TestTalkIncludesMETAR(t *testing.T) {
	h := newHarness(t, &fakeMETAR{report: &weather.METAR{Raw: "KJFK 011251Z 22010KT 10SM FEW250 24/14 A3002"}})

	_, err := h.svc.Talk(context.Background(), "request taxi")
	require.NoError(t, err)
	assert.Contains(t, h.svc.contexts.Messages("KJFK")[1].Content, "Latest METAR: KJFK 011251Z")
}

func TestTalkWithoutMETARStillWorks(t *testing.T) {
	h := newHarness(t, &fakeMETAR{err: errors.New("timeout")})

	_, err := h.svc.Talk(context.Background(), "request taxi")
	require.NoError(t, err)
	assert.NotContains(t, h.svc.contexts.Messages("KJFK")[1].Content, "METAR")
}

func TestSpeechErrorAndReset(t *testing.T) {
	h := newHarness(t, nil)

	h.svc.SpeechError("no-speech")
	h.svc.SpeechError("network")
	events := h.rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "No speech recognized. Speak up?", events[0].Text)
	assert.Equal(t, "Speech recognition error: network", events[1].Text)

	_, err := h.svc.Talk(context.Background(), "hello")
	require.NoError(t, err)
	_, err = h.svc.Tune("KLGA")
	require.NoError(t, err)

	view, ok := h.svc.Context("kjfk")
	require.True(t, ok)
	assert.Len(t, view.Messages, 4)

	h.svc.Reset()
	_, ok = h.svc.Context("KJFK")
	assert.False(t, ok)
	assert.Empty(t, h.svc.Frequency())
}
