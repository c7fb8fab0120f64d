package narration

import (
	"context"
	"time"

	"github.com/yegors/geofs-atc/internal/storage/sqlite"
	"github.com/yegors/geofs-atc/pkg/logger"
)

const archiveWriteTimeout = 5 * time.Second

// Archiver stores transmissions
type Archiver interface {
	Append(ctx context.Context, t sqlite.Transmission) (int64, error)
}

// Archive writes radio transmissions to the radio log. Notices and the
// static cue are not transmissions and are ignored.
type Archive struct {
	store  Archiver
	now    func() time.Time
	logger *logger.Logger
}

// NewArchive creates an archive sink
func NewArchive(store Archiver, log *logger.Logger) *Archive {
	return &Archive{
		store:  store,
		now:    time.Now,
		logger: log.Named("radio-archive"),
	}
}

func (a *Archive) ATCMessage(code, text string) {
	a.write(sqlite.Transmission{
		SpeakerType: sqlite.SpeakerATC,
		Station:     code,
		Title:       ATCTitle(code),
		Content:     text,
	})
}

func (a *Archive) PilotMessage(title, text string) {
	a.write(sqlite.Transmission{
		SpeakerType: sqlite.SpeakerPilot,
		Title:       title,
		Content:     text,
	})
}

func (a *Archive) Notice(Notice) {}

func (a *Archive) PlayStatic() {}

func (a *Archive) write(t sqlite.Transmission) {
	t.CreatedAt = a.now()
	ctx, cancel := context.WithTimeout(context.Background(), archiveWriteTimeout)
	defer cancel()

	if _, err := a.store.Append(ctx, t); err != nil {
		// Archiving is best effort, the session carries on
		a.logger.Warn("Failed to archive transmission",
			logger.String("speaker", t.SpeakerType),
			logger.Error(err))
	}
}
