package generator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/meridianfm/meridian/internal/domain"
)

// turnPattern matches the dialogue format demanded of the model:
// "**[Speaker Name]:** text" (§4.4.2).
var turnPattern = regexp.MustCompile(`(?m)^\*\*\[(.+?)\]:\*\*\s*(.+)$`)

// ParseTurns splits a generated multi-speaker script into an ordered
// sequence of turns, matching each speaker label to a participant by name
// (character name takes precedence over DJ name, mirrored by
// [Speaker.Name]). A label that matches no participant is a generation
// rejection (§4.4.2).
func ParseTurns(segmentID domain.ID, script string, speakers []Speaker) ([]domain.ConversationTurn, error) {
	byName := make(map[string]Speaker, len(speakers))
	for _, sp := range speakers {
		byName[strings.ToLower(sp.Name())] = sp
	}

	matches := turnPattern.FindAllStringSubmatch(script, -1)
	if len(matches) == 0 {
		return nil, &StageError{Kind: KindTransient, Stage: "turn_parsing", Message: "no turns matched the required dialogue format"}
	}

	turns := make([]domain.ConversationTurn, 0, len(matches))
	for i, m := range matches {
		label := strings.TrimSpace(m[1])
		text := strings.TrimSpace(m[2])
		if text == "" {
			continue
		}
		sp, ok := byName[strings.ToLower(label)]
		if !ok {
			return nil, &StageError{
				Kind: KindTransient, Stage: "turn_parsing",
				Message: "unknown speaker in generated script",
				Details: fmt.Sprintf("speaker %q does not match any participant", label),
			}
		}
		turns = append(turns, domain.ConversationTurn{
			SegmentID:     segmentID,
			ParticipantID: sp.Participant.ID,
			TurnNumber:    i + 1,
			SpeakerName:   sp.Name(),
			Text:          text,
		})
	}
	return turns, nil
}

// EnsureParticipants returns participants unchanged if non-empty, else
// derives one participant per program_dj (copying role and speaking order),
// per §4.4.2: "derive them from program_djs if missing".
func EnsureParticipants(segmentID domain.ID, existing []domain.ConversationParticipant, programDJs []domain.ProgramDJ) []domain.ConversationParticipant {
	if len(existing) > 0 {
		return existing
	}
	derived := make([]domain.ConversationParticipant, len(programDJs))
	for i, pd := range programDJs {
		derived[i] = domain.ConversationParticipant{
			ID:        domain.NewID(),
			SegmentID: segmentID,
			DJID:      pd.DJID,
			Role:      pd.Role,
			Order:     pd.Order,
		}
	}
	return derived
}
