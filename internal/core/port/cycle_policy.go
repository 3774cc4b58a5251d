package port

import (
	"github.com/vgrau/excess2lambda/internal/core/domain"
)

// CycleFailurePolicy decides how a poll cycle failure affects the
// process. Daemon mode tolerates failures, one-shot mode does not.
type CycleFailurePolicy interface {
	OnFailure(stage string, cause error) domain.CycleFailedEvent
	OnSuccess()
	ConsecutiveFailures() uint
}
