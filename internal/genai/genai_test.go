package genai

import (
	"strings"
	"testing"
	"time"

	"github.com/recruitpipe/recruitpipe/internal/models"
)

func TestParseReply(t *testing.T) {
	content := `{"response": "Thanks for reaching out!", "next_stage": "screening",
		"extracted_info": {"company": "Acme", "position": "SRE"},
		"requires_escalation": false}`

	reply, err := ParseReply(content)
	if err != nil {
		t.Fatalf("ParseReply failed: %v", err)
	}
	if reply.Response != "Thanks for reaching out!" {
		t.Errorf("response = %q", reply.Response)
	}
	if reply.NextStage != models.StageScreening {
		t.Errorf("next_stage = %s, want screening", reply.NextStage)
	}
	if reply.ExtractedInfo.Company != "Acme" || reply.ExtractedInfo.Position != "SRE" {
		t.Errorf("extracted_info = %+v", reply.ExtractedInfo)
	}
}

func TestParseReplyTolerantOfFences(t *testing.T) {
	content := "Here is the reply:\n```json\n{\"response\": \"ok\"}\n```\nLet me know."
	reply, err := ParseReply(content)
	if err != nil {
		t.Fatalf("ParseReply failed on fenced output: %v", err)
	}
	if reply.Response != "ok" {
		t.Errorf("response = %q, want ok", reply.Response)
	}
}

func TestParseReplyDropsUnknownStage(t *testing.T) {
	reply, err := ParseReply(`{"response": "ok", "next_stage": "hired"}`)
	if err != nil {
		t.Fatalf("ParseReply failed: %v", err)
	}
	if reply.NextStage != "" {
		t.Errorf("unknown stage must be dropped, got %q", reply.NextStage)
	}
}

func TestParseReplyEscalation(t *testing.T) {
	reply, err := ParseReply(`{"response": "", "requires_escalation": true, "escalation_reason": "Offer received"}`)
	if err != nil {
		t.Fatalf("ParseReply failed: %v", err)
	}
	if !reply.RequiresEscalation || reply.EscalationReason != "Offer received" {
		t.Errorf("escalation not parsed: %+v", reply)
	}
}

func TestParseReplyNoJSON(t *testing.T) {
	if _, err := ParseReply("the model rambled with no structure"); err == nil {
		t.Error("expected error for output without a JSON object")
	}
	if _, err := ParseReply(`{"response": bad`); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestBuildUserPromptTrimsHistory(t *testing.T) {
	state := &models.ConversationState{
		ThreadID: "thread-1",
		Stage:    models.StageNegotiation,
		Channel:  models.ChannelEmail,
	}
	for i := 0; i < 10; i++ {
		state.ConversationHistory = append(state.ConversationHistory, models.Message{
			Timestamp: time.Now(),
			Channel:   models.ChannelEmail,
			Direction: models.DirectionIncoming,
			Content:   "turn-" + string(rune('0'+i)),
		})
	}

	prompt, err := buildUserPrompt(GenerateRequest{
		Message: "What salary range are you targeting?",
		Channel: models.ChannelEmail,
		State:   state,
		Context: map[string]string{"sender": "recruiter@acme.test"},
	})
	if err != nil {
		t.Fatalf("buildUserPrompt failed: %v", err)
	}

	if !strings.Contains(prompt, "Channel: email") {
		t.Error("prompt missing channel line")
	}
	if !strings.Contains(prompt, "What salary range are you targeting?") {
		t.Error("prompt missing inbound message")
	}
	if !strings.Contains(prompt, "recruiter@acme.test") {
		t.Error("prompt missing context entries")
	}
	// Only the most recent 6 turns ride along.
	if strings.Contains(prompt, "turn-3") {
		t.Error("old history turns must be trimmed from the snapshot")
	}
	if !strings.Contains(prompt, "turn-4") || !strings.Contains(prompt, "turn-9") {
		t.Error("recent history turns missing from the snapshot")
	}

	// Trimming must not mutate the caller's state.
	if len(state.ConversationHistory) != 10 {
		t.Errorf("caller history mutated: len = %d", len(state.ConversationHistory))
	}
}

func TestBuildUserPromptNoState(t *testing.T) {
	prompt, err := buildUserPrompt(GenerateRequest{Message: "hi", Channel: models.ChannelSMS})
	if err != nil {
		t.Fatalf("buildUserPrompt failed: %v", err)
	}
	if strings.Contains(prompt, "Current conversation state") {
		t.Error("prompt must omit state section when no state exists")
	}
}
