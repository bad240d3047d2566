// Package prompt turns a received message and the user's instruction into the single prompt sent to the model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/MegaGrindStone/draft-writer/internal/models"
)

// Field names reported by models.InvalidInputError.
const (
	FieldOriginalMessage = "original message"
	FieldInstruction     = "instruction"
)

// Small models need the task spelled out, so the framing marks the received message, the instruction and the
// place where the reply starts.
const framing = `The user received the following message from someone else:
"""
%s
"""

The user wants to send a reply based on this instruction: "%s"

Draft a message that the user can send as their reply.
The reply should directly convey the user's intent based on the instruction.
IMPORTANT: Write only the reply text itself, do not act as an assistant writing about the reply. Do not add anything other than the reply itself.

Reply Draft:`

// Build returns the prompt for drafting a reply to originalMessage following instruction. Both inputs are trimmed;
// if either is empty afterwards a *models.InvalidInputError is returned.
func Build(originalMessage, instruction string) (string, error) {
	originalMessage = strings.TrimSpace(originalMessage)
	if originalMessage == "" {
		return "", &models.InvalidInputError{Field: FieldOriginalMessage}
	}
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return "", &models.InvalidInputError{Field: FieldInstruction}
	}

	return fmt.Sprintf(framing, originalMessage, instruction), nil
}
