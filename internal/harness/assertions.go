package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/tanudai/Nuclear-SCADA/internal/plant"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Alerts   []TraceEvent // Alert trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Alerts) > 0 {
		fmt.Fprintf(&buf, "\nAlerts:\n")
		for _, a := range e.Alerts {
			fmt.Fprintf(&buf, "  [tick %d] %s %s\n", a.Tick, a.Severity, a.Message)
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(r *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(r, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertAlertEmitted:
		return assertAlertEmitted(r, a)
	case AssertAlertCount:
		return assertAlertCount(r, a)
	case AssertAlertOrder:
		return assertAlertOrder(r, a)
	case AssertStatusReached:
		return assertStatusReached(r, a)
	case AssertStatusNever:
		return assertStatusNever(r, a)
	case AssertFinalState:
		return assertFinalState(r, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertAlertEmitted checks that an alert with the message was raised, at
// the pinned tick when one is given.
func assertAlertEmitted(r *Result, a Assertion) error {
	alerts := r.alerts()
	var ticks []int64
	for _, e := range alerts {
		if e.Message != a.Message {
			continue
		}
		if a.Tick == nil || e.Tick == *a.Tick {
			return nil
		}
		ticks = append(ticks, e.Tick)
	}

	expected := fmt.Sprintf("alert %q", a.Message)
	actual := "not raised"
	if a.Tick != nil {
		expected += fmt.Sprintf(" at tick %d", *a.Tick)
		if len(ticks) > 0 {
			actual = fmt.Sprintf("raised at ticks %v", ticks)
		}
	}
	return &AssertionError{Type: AssertAlertEmitted, Expected: expected, Actual: actual, Alerts: alerts}
}

// assertAlertCount checks if the message was raised exactly Count times.
func assertAlertCount(r *Result, a Assertion) error {
	alerts := r.alerts()
	count := 0
	for _, e := range alerts {
		if e.Message == a.Message {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertAlertCount,
			Expected: fmt.Sprintf("%d occurrences of %q", a.Count, a.Message),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Alerts:   alerts,
		}
	}
	return nil
}

// assertAlertOrder checks that the messages first appear in the given
// order. Other alerts may appear in between.
func assertAlertOrder(r *Result, a Assertion) error {
	alerts := r.alerts()
	positions := make(map[string]int)
	for i, e := range alerts {
		if _, seen := positions[e.Message]; !seen {
			positions[e.Message] = i
		}
	}

	for _, msg := range a.Messages {
		if _, ok := positions[msg]; !ok {
			return &AssertionError{
				Type:     AssertAlertOrder,
				Expected: fmt.Sprintf("all alerts present: %q", a.Messages),
				Actual:   fmt.Sprintf("missing alert: %q", msg),
				Alerts:   alerts,
			}
		}
	}

	for i := 1; i < len(a.Messages); i++ {
		prev, curr := a.Messages[i-1], a.Messages[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertAlertOrder,
				Expected: fmt.Sprintf("alerts in order: %q", a.Messages),
				Actual: fmt.Sprintf("%q (pos %d) should be before %q (pos %d)",
					prev, positions[prev]+1, curr, positions[curr]+1),
				Alerts: alerts,
			}
		}
	}
	return nil
}

func assertStatusReached(r *Result, a Assertion) error {
	st := mustStatus(a.Status)
	first := r.firstTick(st)
	switch {
	case first < 0:
		return &AssertionError{
			Type:     AssertStatusReached,
			Expected: fmt.Sprintf("status %s", st),
			Actual:   "never reached",
		}
	case a.Tick != nil && first != *a.Tick:
		return &AssertionError{
			Type:     AssertStatusReached,
			Expected: fmt.Sprintf("status %s first at tick %d", st, *a.Tick),
			Actual:   fmt.Sprintf("first at tick %d", first),
		}
	}
	return nil
}

func assertStatusNever(r *Result, a Assertion) error {
	st := mustStatus(a.Status)
	if first := r.firstTick(st); first >= 0 {
		return &AssertionError{
			Type:     AssertStatusNever,
			Expected: fmt.Sprintf("status never %s", st),
			Actual:   fmt.Sprintf("reached at tick %d", first),
			Alerts:   r.alerts(),
		}
	}
	return nil
}

// assertFinalState compares the expected fields against the final published
// state using subset semantics.
func assertFinalState(r *Result, a Assertion) error {
	actual, err := finalFields(r)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var mismatches []string
	for _, k := range keys {
		want := a.Expect[k]
		got, ok := actual[k]
		if !ok {
			mismatches = append(mismatches, fmt.Sprintf("%s: no such field", k))
			continue
		}
		if !valuesEqual(want, got) {
			mismatches = append(mismatches, fmt.Sprintf("%s: expected %v, got %v", k, want, got))
		}
	}
	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%v", a.Expect),
			Actual:   strings.Join(mismatches, "; "),
		}
	}
	return nil
}

// finalFields flattens the final state to its JSON field names.
func finalFields(r *Result) (map[string]any, error) {
	if r.Final == nil {
		return nil, fmt.Errorf("final_state: run has no final snapshot")
	}
	data, err := json.Marshal(r.Final.State)
	if err != nil {
		return nil, fmt.Errorf("final_state: marshal state: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("final_state: unmarshal state: %w", err)
	}
	fields["control_mode"] = r.Final.Mode.String()
	fields["tick"] = float64(r.Final.Tick)
	fields["rod_target"] = r.Final.RodTarget
	return fields, nil
}

// valuesEqual compares a YAML value against a JSON value. Numbers compare
// by value regardless of their Go type.
func valuesEqual(want, got any) bool {
	wf, wok := toFloat(want)
	gf, gok := toFloat(got)
	if wok && gok {
		return wf == gf
	}
	return reflect.DeepEqual(want, got)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// mustStatus parses a status validated by validateAssertion.
func mustStatus(s string) plant.Status {
	var st plant.Status
	_ = st.UnmarshalText([]byte(s))
	return st
}
