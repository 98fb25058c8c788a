package deps

import (
	"time"

	"github.com/fieldops/scheduler/internal/logger"
	"github.com/fieldops/scheduler/internal/store"
	"github.com/fieldops/scheduler/internal/upstream"
)

// Deps carries everything route handlers need, injected at construction so
// handlers stay testable with fakes (no process-wide singletons).
type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
	TimeNow   func() time.Time // for testing, defaults to time.Now

	Appointments  store.AppointmentCreator // atomic appointment writer
	ClientLookup  upstream.Lookup          // client-existence validation
	ServiceLookup upstream.Lookup          // service-existence validation

	NewAppointmentID func() string // for testing, defaults to domain.NewAppointmentID
}
