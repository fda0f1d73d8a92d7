// Package advisor builds the prompts sent to the external text assistant
// that writes plant diagnoses and emergency operating procedures.
//
// The assistant only reads a published state; nothing it returns feeds back
// into the simulation.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tanudai/Nuclear-SCADA/internal/plant"
)

// Kind selects the prompt.
type Kind int

const (
	KindDiagnosis Kind = iota + 1
	KindEmergency
)

func (k Kind) String() string {
	switch k {
	case KindDiagnosis:
		return "diagnosis"
	case KindEmergency:
		return "emergency"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps "diagnosis" or "emergency" to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "diagnosis":
		return KindDiagnosis, nil
	case "emergency":
		return KindEmergency, nil
	default:
		return 0, fmt.Errorf("unknown advisor kind %q (want diagnosis or emergency)", s)
	}
}

// Fallback texts returned when the assistant cannot be reached.
const (
	FallbackDiagnosis = "Error: Could not retrieve diagnosis from AI assistant. Please check console for details."
	FallbackEmergency = "Error: Could not retrieve EOP from AI assistant. Please refer to standard operating procedures."
)

// Fallback returns the fallback text for kind.
func Fallback(kind Kind) string {
	if kind == KindEmergency {
		return FallbackEmergency
	}
	return FallbackDiagnosis
}

// ErrUnavailable is returned by Unavailable.
var ErrUnavailable = errors.New("advisor unavailable")

// Advisor turns a prompt into Markdown prose.
type Advisor interface {
	Advise(ctx context.Context, kind Kind, prompt string) (string, error)
}

// AdvisorFunc adapts a function to Advisor.
type AdvisorFunc func(ctx context.Context, kind Kind, prompt string) (string, error)

// Advise implements Advisor.
func (f AdvisorFunc) Advise(ctx context.Context, kind Kind, prompt string) (string, error) {
	return f(ctx, kind, prompt)
}

// Unavailable is an Advisor that always fails. It is the default when no
// assistant is configured.
var Unavailable Advisor = AdvisorFunc(func(context.Context, Kind, string) (string, error) {
	return "", ErrUnavailable
})

// Advice is the result of a consultation.
type Advice struct {
	Kind     string `json:"kind"`
	Prompt   string `json:"prompt"`
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
}

// Consult builds the prompt for st and asks a. On failure the advice holds
// the fallback text and the error is returned alongside it.
func Consult(ctx context.Context, a Advisor, kind Kind, st plant.State) (Advice, error) {
	prompt := Prompt(kind, st)
	adv := Advice{Kind: kind.String(), Prompt: prompt}
	if a == nil {
		a = Unavailable
	}
	text, err := a.Advise(ctx, kind, prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		adv.Text = Fallback(kind)
		adv.Fallback = true
		if err == nil {
			err = errors.New("advisor returned empty text")
		}
		return adv, fmt.Errorf("%s advice: %w", kind, err)
	}
	adv.Text = text
	return adv, nil
}

// Prompt renders the prompt for kind from st.
func Prompt(kind Kind, st plant.State) string {
	if kind == KindEmergency {
		return EmergencyPrompt(st)
	}
	return DiagnosisPrompt(st)
}

var printer = message.NewPrinter(language.English)

// DiagnosisPrompt asks for a diagnosis and recommended actions.
func DiagnosisPrompt(st plant.State) string {
	var b strings.Builder
	b.WriteString("You are a senior nuclear power plant operations engineer AI assistant.\n")
	b.WriteString("Analyze the following SCADA data from a nuclear reactor and provide a concise diagnosis and recommended actions.\n")
	b.WriteString("Format the response as Markdown.\n\n")
	b.WriteString("**Current SCADA Data:**\n")
	printer.Fprintf(&b, "- Reactor Core Temperature: %.2f °C\n", st.Temperature)
	printer.Fprintf(&b, "- Coolant System Pressure: %.2f bar\n", st.Pressure)
	printer.Fprintf(&b, "- Turbine Speed: %.0f RPM\n", st.TurbineSpeed)
	printer.Fprintf(&b, "- Generator Power Output: %.2f MW\n", st.PowerOutput)
	printer.Fprintf(&b, "- Control Rod Insertion: %.2f%%\n", st.RodPosition)
	printer.Fprintf(&b, "- Radiation Levels: %.4f mSv/h\n", st.Radiation)
	printer.Fprintf(&b, "- Overall Plant Status: %s\n\n", st.Status)
	b.WriteString("**Your Task:**\n")
	b.WriteString("1. **Diagnosis:** Briefly explain the current situation and potential risks based on the data.\n")
	b.WriteString("2. **Recommendations:** Provide a bulleted list of immediate actions to take to stabilize the plant or optimize its performance.\n")
	return b.String()
}

// EmergencyPrompt asks for a numbered emergency operating procedure.
func EmergencyPrompt(st plant.State) string {
	var b strings.Builder
	b.WriteString("You are an AI assistant providing Emergency Operating Procedures (EOPs) for a nuclear power plant control room operator.\n")
	printer.Fprintf(&b, "The plant is currently in a '%s' state.\n", st.Status)
	b.WriteString("Analyze the following critical SCADA data and provide a clear, concise, step-by-step emergency procedure to stabilize the situation.\n")
	b.WriteString("The procedure must be formatted as a numbered list in Markdown.\n\n")
	b.WriteString("**Current Critical Data:**\n")
	printer.Fprintf(&b, "- Overall Plant Status: %s\n", st.Status)
	printer.Fprintf(&b, "- Reactor Core Temperature: %.2f °C\n", st.Temperature)
	printer.Fprintf(&b, "- Coolant System Pressure: %.2f bar\n", st.Pressure)
	printer.Fprintf(&b, "- Coolant Flow Rate: %.2f m³/s\n", st.CoolantFlow)
	printer.Fprintf(&b, "- Containment Pressure: %.3f atm\n", st.ContainmentPressure)
	printer.Fprintf(&b, "- Radiation Levels: %.4f mSv/h\n", st.Radiation)
	printer.Fprintf(&b, "- ECCS Status: %s\n\n", st.ECCS)
	b.WriteString("**Your Task:**\n")
	b.WriteString("Generate a numbered list of immediate actions for the operator to take. Prioritize actions that ensure reactor safety first. Be direct and use clear, unambiguous language.\n")
	return b.String()
}
