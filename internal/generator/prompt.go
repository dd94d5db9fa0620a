package generator

import (
	"fmt"
	"strings"
	"time"

	"github.com/meridianfm/meridian/internal/domain"
	"github.com/meridianfm/meridian/internal/provider/llm"
)

// Speaker pairs a conversation participant with the DJ persona voicing it,
// the unit the prompt builder needs to introduce a speaker by name, role,
// and personality (§4.4.2).
type Speaker struct {
	Participant domain.ConversationParticipant
	DJ          domain.DJ
}

// Name is the speaker's display name: character name takes precedence over
// the underlying DJ's name, matching the precedence rule used when parsing
// turns back out of the generated script (§4.4.2).
func (s Speaker) Name() string {
	if s.Participant.CharacterName != "" {
		return s.Participant.CharacterName
	}
	return s.DJ.Name
}

// BuildSystemPrompt composes the station's world/style-guide instructions,
// anchored on the broadcast's shifted year so the model treats it as the
// present (§4.4.1 step 3).
func BuildSystemPrompt(stationName, styleGuide string, broadcastYear int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the script-writing engine for %s, an AI-run radio station broadcasting live in the year %d.\n", stationName, broadcastYear)
	b.WriteString("Write as if this year is the present day. Never reference the real-world current year or treat it as historical fiction.\n")
	if styleGuide != "" {
		b.WriteString("Station style guide:\n")
		b.WriteString(styleGuide)
		b.WriteString("\n")
	}
	b.WriteString("Write natural spoken-word radio copy, not prose. Do not include stage directions, sound effect cues, or production notes.\n")
	return b.String()
}

// formattedBroadcastDate renders broadcastTime the way §4.4.1 step 3
// requires: "weekday, month, day, year, HH:MM".
func formattedBroadcastDate(broadcastTime time.Time) string {
	return broadcastTime.Format("Monday, January 2, 2006 15:04")
}

func renderChunks(chunks []RetrievedChunk) string {
	if len(chunks) == 0 {
		return "No source material was retrieved for this segment; write from the station's established world only.\n"
	}
	var b strings.Builder
	b.WriteString("Source material (for grounding only, do not quote verbatim):\n")
	for i, c := range chunks {
		fmt.Fprintf(&b, "%d. (relevance %.2f) %s\n", i+1, c.FinalScore, strings.TrimSpace(c.Chunk.Text))
	}
	return b.String()
}

// BuildMonologuePrompt composes the user prompt for a single-DJ segment
// (§4.4.1 step 3).
func BuildMonologuePrompt(broadcastTime time.Time, dj domain.DJ, slotType string, targetDurationSec int, chunks []RetrievedChunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Broadcast date: %s\n", formattedBroadcastDate(broadcastTime))
	fmt.Fprintf(&b, "DJ: %s. Personality: %s. Specializations: %s.\n", dj.Name, dj.Personality, strings.Join(dj.Specializations, ", "))
	fmt.Fprintf(&b, "Segment type: %s. Target duration: %d seconds.\n", slotType, targetDurationSec)
	b.WriteString(renderChunks(chunks))
	b.WriteString("Write this DJ's monologue script for the segment now, in their voice, timed to the target duration.\n")
	return b.String()
}

// BuildMultiSpeakerPrompt composes the user prompt for a conversation-format
// segment, demanding the `**[Speaker Name]:** text` turn format (§4.4.2).
func BuildMultiSpeakerPrompt(broadcastTime time.Time, speakers []Speaker, slotType string, targetDurationSec int, chunks []RetrievedChunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Broadcast date: %s\n", formattedBroadcastDate(broadcastTime))
	b.WriteString("Speakers:\n")
	for _, sp := range speakers {
		fmt.Fprintf(&b, "- %s (%s). Personality: %s.\n", sp.Name(), sp.Participant.Role, sp.DJ.Personality)
	}
	fmt.Fprintf(&b, "Segment type: %s. Target duration: %d seconds.\n", slotType, targetDurationSec)
	b.WriteString(renderChunks(chunks))
	b.WriteString("Write this conversation as alternating dialogue. Format every line exactly as `**[Speaker Name]:** text`, using the speaker names given above verbatim. Do not include stage directions.\n")
	return b.String()
}

// ToMessages wraps a system and user prompt as an [llm.Request]'s Messages.
func ToMessages(systemPrompt, userPrompt string) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}
}
