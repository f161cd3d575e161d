package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerationError_SurfacesEveryCause(t *testing.T) {
	primary := &WorkerError{Err: ErrGenerationTimeout}
	fallback := fmt.Errorf("txt2img returned status 500")

	err := error(&GenerationError{Failures: []StrategyFailure{
		{Strategy: "worker", Err: primary},
		{Strategy: "sdwebui", Err: fallback},
	}})

	assert.ErrorIs(t, err, ErrFallbackFailed)
	assert.ErrorIs(t, err, ErrGenerationTimeout)
	assert.ErrorIs(t, err, fallback)
	assert.Contains(t, err.Error(), "worker: generation timed out")
	assert.Contains(t, err.Error(), "sdwebui: txt2img returned status 500")

	var ge *GenerationError
	assert.True(t, errors.As(err, &ge))
	assert.Equal(t, primary, ge.Primary())
	assert.Equal(t, fallback, ge.Last())
}

func TestWorkerError_Message(t *testing.T) {
	err := &WorkerError{ExitCode: 2, Stderr: "CUDA out of memory\n", Err: ErrGenerationWorkerFailed}
	assert.Equal(t, "generation worker failed (exit 2): CUDA out of memory", err.Error())
	assert.ErrorIs(t, err, ErrGenerationWorkerFailed)
}

func TestApplyError_MatchesSentinel(t *testing.T) {
	cause := errors.New("osascript exited 1")
	err := &ApplyError{Display: "main", Err: cause}
	assert.ErrorIs(t, err, ErrApply)
	assert.ErrorIs(t, err, cause)
}
