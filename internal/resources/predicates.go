package resources

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/imamik/harvester-e2e/internal/document"
	"github.com/imamik/harvester-e2e/internal/util/converge"
)

// CodeIs holds when the response has the given status.
func CodeIs(code int) converge.Predicate {
	return func(c int, _ document.Document) (bool, error) {
		return c == code, nil
	}
}

// Gone holds once the resource answers 404.
var Gone = CodeIs(http.StatusNotFound)

// ProgressComplete holds when status.progress reached 100, as images report
// once downloaded.
func ProgressComplete(code int, doc document.Document) (bool, error) {
	if code != http.StatusOK {
		return false, nil
	}
	p, ok := doc.GetInt64("status.progress")
	return ok && p == 100, nil
}

// PhaseIs holds when status.phase equals phase.
func PhaseIs(phase string) converge.Predicate {
	return func(code int, doc document.Document) (bool, error) {
		return code == http.StatusOK && doc.GetString("status.phase") == phase, nil
	}
}

// StatusReady holds when status.ready is true.
func StatusReady(code int, doc document.Document) (bool, error) {
	return code == http.StatusOK && doc.GetBool("status.ready"), nil
}

// FieldSet holds when path carries a non-empty value.
func FieldSet(path string) converge.Predicate {
	return func(code int, doc document.Document) (bool, error) {
		if code != http.StatusOK {
			return false, nil
		}
		v, ok := doc.Get(path)
		if !ok || v == nil {
			return false, nil
		}
		s, isString := v.(string)
		return !isString || s != "", nil
	}
}

// StateActive holds when a Rancher object reports state "active" with a
// message mentioning Ready.
func StateActive(code int, doc document.Document) (bool, error) {
	if code != http.StatusOK {
		return false, nil
	}
	return doc.GetString("metadata.state.name") == "active" &&
		strings.Contains(doc.GetString("metadata.state.message"), "Ready"), nil
}

// HasCondition holds when a condition of the given type is present in
// conditions or status.conditions.
func HasCondition(condType string) converge.Predicate {
	return func(code int, doc document.Document) (bool, error) {
		if code != http.StatusOK {
			return false, nil
		}
		conds := doc.GetSlice("conditions")
		if conds == nil {
			conds = doc.GetSlice("status.conditions")
		}
		return lo.ContainsBy(conds, func(c any) bool {
			m, ok := c.(map[string]any)
			return ok && m["type"] == condType
		}), nil
	}
}

// JSONPathEquals holds when the kubectl-style template renders want.
func JSONPathEquals(template, want string) converge.Predicate {
	return func(code int, doc document.Document) (bool, error) {
		if code != http.StatusOK {
			return false, nil
		}
		got, err := doc.JSONPath(template)
		if err != nil {
			return false, nil
		}
		return got == want, nil
	}
}

// All holds when every predicate holds. It stops at the first predicate
// that does not hold or fails.
func All(preds ...converge.Predicate) converge.Predicate {
	return func(code int, doc document.Document) (bool, error) {
		for _, p := range preds {
			ok, err := p(code, doc)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// FailOnCodes wraps pred so that any of codes ends the poll with an error.
func FailOnCodes(pred converge.Predicate, codes ...int) converge.Predicate {
	return func(code int, doc document.Document) (bool, error) {
		if slices.Contains(codes, code) {
			return false, fmt.Errorf("unexpected status %d", code)
		}
		return pred(code, doc)
	}
}
