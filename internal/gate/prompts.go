package gate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PromptSet is the instructional text driving the classifiers. It is
// configuration, not logic: it lives in a versioned YAML file so grading
// behavior is reproducible across deployments.
type PromptSet struct {
	Version      string `yaml:"version"`
	ShouldAnswer string `yaml:"shouldAnswer"`
	IsGoodAnswer string `yaml:"isGoodAnswer"`
}

// DefaultPrompts returns the built-in prompt set, used when no prompts file
// is configured.
func DefaultPrompts() *PromptSet {
	return &PromptSet{
		Version: "builtin-1",
		ShouldAnswer: `You decide whether a knowledge bot should answer a chat message.
Answer only questions seeking information that the configured knowledge sources could plausibly cover.
Do not answer greetings, chit-chat, scheduling, or messages directed at a specific person.
Respond with JSON only: {"should_answer": true|false, "reasoning": "<one sentence>"}`,
		IsGoodAnswer: `You grade whether an answer actually resolves a question.
An answer that is evasive, off-topic, or admits it could not find anything is not good.
Respond with JSON only: {"is_good_answer": true|false}`,
	}
}

// LoadPrompts reads a prompt set from a YAML file. Missing fields fall back
// to the built-in prompts; an unreadable or invalid file is an error, never
// a silent default.
func LoadPrompts(path string) (*PromptSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}
	ps := DefaultPrompts()
	if err := yaml.Unmarshal(data, ps); err != nil {
		return nil, fmt.Errorf("parse prompts file %s: %w", path, err)
	}
	return ps, nil
}
