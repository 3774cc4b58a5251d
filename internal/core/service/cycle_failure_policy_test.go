package service

import (
	"errors"
	"testing"

	"github.com/vgrau/excess2lambda/internal/core/domain"
	"github.com/vgrau/excess2lambda/internal/util"

	"github.com/stretchr/testify/assert"
)

func TestDaemonPolicyTolerates(t *testing.T) {
	policy := RunModeFailurePolicy{
		Daemon: true,
		Logger: util.TestLogger(),
	}

	ev := policy.OnFailure(domain.CYCLE_STAGE_READ, errors.New("timeout"))
	assert.False(t, ev.Fatal)
	assert.Equal(t, domain.CYCLE_STAGE_READ, ev.Stage)
	assert.Equal(t, uint(1), policy.ConsecutiveFailures())

	ev = policy.OnFailure(domain.CYCLE_STAGE_WRITE, errors.New("device off"))
	assert.False(t, ev.Fatal)
	assert.Equal(t, uint(2), policy.ConsecutiveFailures())

	policy.OnSuccess()
	assert.Equal(t, uint(0), policy.ConsecutiveFailures())
}

func TestOneShotPolicyFatal(t *testing.T) {
	policy := RunModeFailurePolicy{
		Daemon: false,
		Logger: util.TestLogger(),
	}

	ev := policy.OnFailure(domain.CYCLE_STAGE_WRITE, errors.New("write failed"))
	assert.True(t, ev.Fatal)
	assert.Equal(t, domain.CYCLE_STAGE_WRITE, ev.Stage)
}
