package memory

import (
	"fmt"
	"strings"
)

const (
	analysisTemperature = 0.3
	analysisMaxTokens   = 300

	chunkSummaryMaxTokens = 100
	chunkSummaryMaxChars  = 50

	plotSummaryMaxTokens = 150
	plotSummaryMaxChars  = 100
)

// analysisPrompt asks the model to classify the pending conversation and
// decide whether it should be condensed into a chunk now.
func analysisPrompt(transcript, genre string, knownCharacters []string) string {
	known := "none"
	if len(knownCharacters) > 0 {
		known = strings.Join(knownCharacters, ", ")
	}

	return fmt.Sprintf(`You are analyzing a segment of an ongoing conversation.
Genre: %s
Known characters: %s

Conversation segment:
%s

Respond with only a JSON object, no other text:
{
  "importance": <0.0 to 1.0, how significant this segment is to the overall story>,
  "shouldCreateChunk": <true if this segment concludes a scene or topic and should be condensed now>,
  "plotPoint": "<one of: opening, development, climax, resolution>",
  "emotion": "<dominant emotion of the segment>",
  "newCharacters": [<names appearing here that are not in the known list>],
  "keywords": [<up to 5 keywords capturing this segment>]
}`, genre, known, transcript)
}

// chunkSummaryPrompt asks for a very short synopsis of a transcript slice.
func chunkSummaryPrompt(transcript, genre, description string, knownCharacters []string) string {
	var sb strings.Builder
	sb.WriteString("Summarize the following conversation segment in at most 50 characters.\n")
	if genre != "" {
		fmt.Fprintf(&sb, "Genre: %s\n", genre)
	}
	if description != "" {
		fmt.Fprintf(&sb, "Setting: %s\n", description)
	}
	if len(knownCharacters) > 0 {
		fmt.Fprintf(&sb, "Characters: %s\n", strings.Join(knownCharacters, ", "))
	}
	sb.WriteString("\nSegment:\n")
	sb.WriteString(transcript)
	sb.WriteString("\n\nRespond with only the summary text, no quotes or labels.")
	return sb.String()
}

// plotSummaryPrompt asks for a compact "current state" line from the
// concatenated summaries of the chunks selected for retrieval.
func plotSummaryPrompt(summaries []string) string {
	return fmt.Sprintf(`Given these story beats in order:
%s

Describe the current state of the story in at most 100 characters.
Respond with only the summary text.`, strings.Join(summaries, "\n"))
}
