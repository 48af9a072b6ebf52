package legacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pastebin/internal/ratelimit/models"
	dErrors "pastebin/pkg/domain-errors"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		want models.Action
	}{
		{"CREATE_PASTE", models.ActionPasteCreate},
		{"edit_paste", models.ActionPasteUpdate},
		{"  login ", models.ActionAuthAttempt},
		{"BURST_PROTECTION", models.ActionBurst},
		{"RAW_ACCESS", models.ActionRawAccess},
		{"general_api", models.ActionGeneralAPI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Translate(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := Translate("SCRAPE_EVERYTHING")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Translate(" ")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestEveryActionHasALegacyName(t *testing.T) {
	for _, action := range models.AllActions {
		assert.NotEmpty(t, Names(action), action)
	}
}
