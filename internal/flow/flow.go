// internal/flow/flow.go
package flow

import (
	"fmt"

	"kaya-concierge/internal/models"
)

// Step is a named stage in the fixed conversation sequence.
type Step string

const (
	StepGreeting Step = "greeting"
	StepUnit     Step = "unit"
	StepPurpose  Step = "purpose"
	StepBudget   Step = "budget"
	StepArea     Step = "area"
	StepQandA    Step = "qanda"
	StepClosing  Step = "closing"
)

// questionOrder is the required capture order. Next scans it for the first
// unanswered key.
var questionOrder = []Step{StepUnit, StepPurpose, StepBudget, StepArea}

// Exit phrases force the closing shortcut. Matching is exact and
// case-sensitive.
const (
	ExitPhraseReady = "No, I'm ready"
	ExitPhraseAgent = "Talk to an agent"
)

// IsExitPhrase reports whether a user utterance triggers the closing
// shortcut.
func IsExitPhrase(text string) bool {
	return text == ExitPhraseReady || text == ExitPhraseAgent
}

// StepView is the assistant's side of one step: what to say and which
// quick-reply choices to offer. Closing offers none.
type StepView struct {
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices"`
}

// View returns the prompt and choices for a step. Pure and deterministic:
// the same step, name, and answers always produce the same view.
func View(step Step, visitorName string, answers models.Answers) StepView {
	switch step {
	case StepGreeting:
		return StepView{
			Prompt:  fmt.Sprintf("Welcome, %s to KAYA Real Estate. I am your digital concierge. Are you looking to find a new property today?", visitorName),
			Choices: []string{"Yes, I'm looking!", "Just browsing"},
		}
	case StepUnit:
		return StepView{
			Prompt:  "Excellent. What kind of unit are you looking for?",
			Choices: []string{"Studio / 1BR", "2BR or 3BR", "Villa / Penthouse"},
		}
	case StepPurpose:
		return StepView{
			Prompt:  "Are you looking to Rent or Buy?",
			Choices: []string{"Rent", "Buy"},
		}
	case StepBudget:
		prompt := "What is your ideal budget range?"
		if answers.IsRent() {
			prompt = "What is your yearly rental budget?"
		}
		return StepView{
			Prompt:  prompt,
			Choices: []string{"50k-100k", "1.5M-3M", "Luxury"},
		}
	case StepArea:
		return StepView{
			Prompt:  "Which area in Dubai do you prefer?",
			Choices: []string{"Downtown", "Marina", "Dunes Village"},
		}
	case StepQandA:
		return StepView{
			Prompt:  "I've noted your preferences. Any specific questions?",
			Choices: []string{ExitPhraseReady, ExitPhraseAgent},
		}
	case StepClosing:
		return StepView{
			Prompt: "I've noted your preferences. Thank you. Your request is now priority. A KAYA team member will connect with you shortly via WhatsApp. Have a prestigious day!",
		}
	default:
		return StepView{}
	}
}

// Next computes the step after a turn: the first question still unanswered,
// or qanda once all four are captured.
func Next(answers models.Answers) Step {
	for _, step := range questionOrder {
		if answerFor(answers, step) == nil {
			return step
		}
	}
	return StepQandA
}

// Record writes the user's text into the answer slot for the current step.
// Non-question steps and already-answered slots are left untouched.
func Record(answers models.Answers, current Step, text string) models.Answers {
	if answerFor(answers, current) != nil {
		return answers
	}
	out := answers.Clone()
	switch current {
	case StepUnit:
		out.Unit = &text
	case StepPurpose:
		out.Purpose = &text
	case StepBudget:
		out.Budget = &text
	case StepArea:
		out.Area = &text
	}
	return out
}

func answerFor(answers models.Answers, step Step) *string {
	switch step {
	case StepUnit:
		return answers.Unit
	case StepPurpose:
		return answers.Purpose
	case StepBudget:
		return answers.Budget
	case StepArea:
		return answers.Area
	default:
		return nil
	}
}
