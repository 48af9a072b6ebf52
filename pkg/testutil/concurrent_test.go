package testutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "pastebin/pkg/domain-errors"
)

func TestRunConcurrentCategorizes(t *testing.T) {
	res := RunConcurrent(40, func(idx int) error {
		switch idx % 4 {
		case 0:
			return nil
		case 1:
			return dErrors.New(dErrors.CodeRateLimited, "slow down")
		case 2:
			return dErrors.Wrap(errors.New("dial"), dErrors.CodeUnavailable, "store down")
		default:
			return errors.New("boom")
		}
	})

	assert.Equal(t, int32(10), res.Successes)
	assert.Equal(t, int32(10), res.RateLimited)
	assert.Equal(t, int32(10), res.Unavailable)
	assert.Equal(t, int32(10), res.Errors)
	assert.Equal(t, int32(40), res.Total())
}
