package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/turnpike-ai/turnpike"
	"github.com/turnpike-ai/turnpike/src/chat"
)

type dictionaryEntry struct {
	definition   string
	partOfSpeech string
	examples     [2]string
}

var dictionaryEntries = map[string]dictionaryEntry{
	"ephemeral": {
		definition:   "Lasting for a very short time",
		partOfSpeech: "adjective",
		examples:     [2]string{"The ephemeral beauty of cherry blossoms", "His fame was ephemeral"},
	},
	"serendipity": {
		definition:   "The occurrence of events by chance in a happy or beneficial way",
		partOfSpeech: "noun",
		examples:     [2]string{"Finding that book was pure serendipity", "Serendipity led to their meeting"},
	},
	"ubiquitous": {
		definition:   "Present, appearing, or found everywhere",
		partOfSpeech: "adjective",
		examples:     [2]string{"Mobile phones are now ubiquitous", "The ubiquitous presence of advertising"},
	},
	"eloquent": {
		definition:   "Fluent or persuasive in speaking or writing",
		partOfSpeech: "adjective",
		examples:     [2]string{"An eloquent speaker", "Her eloquent description moved everyone"},
	},
	"resilient": {
		definition:   "Able to withstand or recover quickly from difficult conditions",
		partOfSpeech: "adjective",
		examples:     [2]string{"Children are remarkably resilient", "A resilient economy"},
	},
	"paradigm": {
		definition:   "A typical example or pattern of something; a model",
		partOfSpeech: "noun",
		examples:     [2]string{"A new paradigm in physics", "Shifting paradigms in education"},
	},
}

type dictionaryInput struct {
	Word string `json:"word" jsonschema_description:"The word to look up."`
}

// DictionaryTool looks up words in a small seeded dictionary. Unknown words
// get a helpful miss message rather than an error, so the model can tell the
// user instead of retrying.
type DictionaryTool struct{}

func (d *DictionaryTool) Spec() chat.ToolSpec {
	return chat.ToolSpec{
		Name:        "dictionary_lookup",
		Description: "Look up the definition and usage of a word. Use this tool when asked about word meanings, definitions, or vocabulary.",
		InputSchema: GenerateSchema[dictionaryInput](),
		Examples: []map[string]any{
			{"word": "ephemeral"},
			{"word": "serendipity"},
		},
	}
}

func (d *DictionaryTool) Invoke(_ context.Context, req turnpike.ToolRequest) (turnpike.ToolResponse, error) {
	word, ok := req.Arguments["word"].(string)
	if !ok || strings.TrimSpace(word) == "" {
		return turnpike.ToolResponse{}, fmt.Errorf("missing or invalid 'word' argument")
	}

	entry, ok := dictionaryEntries[strings.ToLower(strings.TrimSpace(word))]
	if !ok {
		return turnpike.ToolResponse{Content: fmt.Sprintf(`Dictionary Entry for '%s':

Word not found in the dictionary.
For comprehensive definitions, try:
- Oxford English Dictionary
- Merriam-Webster
- Cambridge Dictionary

Tip: The word '%s' might be very new, slang, misspelled, or a technical term.`, word, word)}, nil
	}

	content := fmt.Sprintf(`Dictionary Entry for '%s':

Definition: %s
Part of Speech: %s

Example Sentences:
- %s
- %s`, word, entry.definition, strings.ToUpper(entry.partOfSpeech), entry.examples[0], entry.examples[1])
	return turnpike.ToolResponse{
		Content:  content,
		Metadata: map[string]string{"word": strings.ToLower(strings.TrimSpace(word))},
	}, nil
}
