// Package legacy translates action names used by older clients into
// canonical actions. Nothing outside the deprecated entry points should
// import it; the gate only ever sees models.Action values.
package legacy

import (
	"strings"

	"pastebin/internal/ratelimit/models"
	dErrors "pastebin/pkg/domain-errors"
)

var names = map[string]models.Action{
	"CREATE_PASTE":     models.ActionPasteCreate,
	"PASTE":            models.ActionPasteCreate,
	"UPDATE_PASTE":     models.ActionPasteUpdate,
	"EDIT_PASTE":       models.ActionPasteUpdate,
	"DELETE_PASTE":     models.ActionPasteDelete,
	"CHECK_URL":        models.ActionURLCheck,
	"URL_VALIDATION":   models.ActionURLCheck,
	"LIST_PUBLIC":      models.ActionPublicPastes,
	"PUBLIC_LIST":      models.ActionPublicPastes,
	"RAW":              models.ActionRawAccess,
	"RAW_VIEW":         models.ActionRawAccess,
	"AUTH":             models.ActionAuthAttempt,
	"LOGIN":            models.ActionAuthAttempt,
	"API":              models.ActionGeneralAPI,
	"API_GENERAL":      models.ActionGeneralAPI,
	"BURST_PROTECTION": models.ActionBurst,
}

// Translate maps a legacy name to its canonical action. Canonical names are
// accepted as-is. Matching ignores case and surrounding whitespace.
func Translate(name string) (models.Action, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	if key == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "action cannot be empty")
	}
	if action, ok := names[key]; ok {
		return action, nil
	}
	if action := models.Action(key); action.IsValid() {
		return action, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown legacy action: "+name)
}

// Names lists the legacy names that map to action.
func Names(action models.Action) []string {
	var out []string
	for name, a := range names {
		if a == action {
			out = append(out, name)
		}
	}
	return out
}
