package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recbench/recbench/internal/experiment"
)

func TestModelFailureErrorIsDetectable(t *testing.T) {
	var target *ModelFailureError

	err := fmt.Errorf("wrapped: %w", &ModelFailureError{Message: "2 failed"})
	assert.True(t, errors.As(err, &target))

	plain := errors.New("config error")
	assert.False(t, errors.As(plain, &target))
}

func TestFinishRunExitContract(t *testing.T) {
	tests := []struct {
		name        string
		digest      experiment.Digest
		wantFailure bool
	}{
		{"all succeeded", experiment.Digest{TotalRows: 3, Succeeded: 3}, false},
		{"partial failure", experiment.Digest{TotalRows: 3, Succeeded: 2, Failed: 1}, true},
		{"total failure", experiment.Digest{TotalRows: 2, Failed: 2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := finishRun(&experiment.Outcome{Digest: tt.digest})
			if !tt.wantFailure {
				require.NoError(t, err)
				return
			}
			var target *ModelFailureError
			require.Error(t, err)
			assert.True(t, errors.As(err, &target))
		})
	}
}
