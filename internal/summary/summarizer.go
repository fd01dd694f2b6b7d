// Package summary turns a finished call transcript into a structured
// consultation summary via an LLM provider.
package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/visavox/visavox/internal/llm"
)

const systemPrompt = `You summarize visa qualification consultations for a case officer.
From the transcript, produce a Markdown summary with these sections:
## Caller Profile (nationality, occupation, goals mentioned)
## Visa Questions Raised
## Guidance Given
## Follow-ups (documents to gather, next steps; write "None" if none)
Only state facts present in the transcript. Do not invent details.`

const userTemplate = `Consultation date: {{date}}

Transcript:
{{transcript}}`

// minTranscriptWords filters out butt-dials and dropped calls that
// produced no usable conversation.
const minTranscriptWords = 20

type ClientFactory func(provider, model string) (llm.Client, error)

type Summarizer struct {
	model   string
	factory ClientFactory
	sleep   func(time.Duration)
}

func New(model string, factory ClientFactory) *Summarizer {
	return &Summarizer{
		model:   model,
		factory: factory,
		sleep:   time.Sleep,
	}
}

// Summarize generates the consultation summary. It returns an empty
// string without error when the transcript is too short to be worth
// summarizing. Transient provider failures are retried with backoff.
func (s *Summarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	if len(strings.Fields(transcript)) < minTranscriptWords {
		return "", nil
	}

	provider, model, err := llm.ParseModel(s.model)
	if err != nil {
		return "", err
	}

	client, err := s.factory(provider, model)
	if err != nil {
		return "", fmt.Errorf("create llm client: %w", err)
	}

	date := time.Now().UTC().Format("2006-01-02")
	prompt := strings.ReplaceAll(userTemplate, "{{transcript}}", transcript)
	prompt = strings.ReplaceAll(prompt, "{{date}}", date)

	backoff := []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second}
	var lastErr error
	for attempt := range backoff {
		result, err := client.Generate(ctx, systemPrompt, prompt)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt < len(backoff)-1 {
			s.sleep(backoff[attempt])
		}
	}
	return "", fmt.Errorf("summarize failed after retries: %w", lastErr)
}
