package dispatch

import (
	"strings"

	"github.com/oppilot/oppilot/pkg/catalog"
	"github.com/oppilot/oppilot/pkg/classify"
)

// resolution is the priority resolver's output: either a pinned model or a
// task category, with the reason recorded on the decision.
type resolution struct {
	reason   Reason
	category classify.Category

	// pinned is set only for ReasonOverride.
	pinned catalog.Ref
}

// resolve applies the precedence rules for one invocation:
//
//  1. An explicit category from the caller is a manual profile. It beats
//     and cancels any active override; choosing a mode explicitly is a
//     deliberate precedence reset, so the pin is cleared, not suspended.
//  2. An active override pins the model and skips classification.
//  3. Free text is classified.
//  4. Nothing given falls back to the default category.
func (e *Engine) resolve(req *Request) resolution {
	if req.Category != "" {
		e.overrides.Clear()
		return resolution{reason: ReasonManualProfile, category: req.Category}
	}

	if st, ok := e.overrides.Get(); ok {
		return resolution{reason: ReasonOverride, pinned: st.Model}
	}

	if strings.TrimSpace(req.Task) != "" {
		category := e.classifier.Classify(req.Task)
		return resolution{reason: ReasonAutoClassified, category: category}
	}

	return resolution{reason: ReasonFallback, category: classify.CategoryDefault}
}
