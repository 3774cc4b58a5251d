package service

import (
	"github.com/vgrau/excess2lambda/internal/core/domain"
	"github.com/vgrau/excess2lambda/internal/core/port"

	"go.uber.org/zap"
)

// RunModeFailurePolicy implements the two run modes. In daemon mode a
// failed cycle is logged and the next cycle proceeds, so a transient
// outage never drops the bridge. Without daemon mode any failure is
// fatal and the process exits non-zero.
type RunModeFailurePolicy struct {
	Daemon   bool
	Logger   *zap.Logger
	failures uint
}

func (p *RunModeFailurePolicy) OnFailure(stage string, cause error) domain.CycleFailedEvent {
	p.failures++
	if p.Daemon {
		p.Logger.Error("poll cycle failed", zap.String("stage", stage),
			zap.Uint("consecutive", p.failures), zap.Error(cause))
	} else {
		p.Logger.Error("poll cycle failed, terminating", zap.String("stage", stage), zap.Error(cause))
	}
	return domain.CycleFailedEvent{
		Stage: stage,
		Cause: cause,
		Fatal: !p.Daemon,
	}
}

func (p *RunModeFailurePolicy) OnSuccess() {
	p.failures = 0
}

func (p *RunModeFailurePolicy) ConsecutiveFailures() uint {
	return p.failures
}

// ensure interface compliance
var _ port.CycleFailurePolicy = (*RunModeFailurePolicy)(nil)
