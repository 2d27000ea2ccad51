package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/recruitpipe/recruitpipe/internal/approval"
	"github.com/recruitpipe/recruitpipe/internal/channels"
	"github.com/recruitpipe/recruitpipe/internal/genai"
	"github.com/recruitpipe/recruitpipe/internal/interview"
	"github.com/recruitpipe/recruitpipe/internal/models"
	"github.com/recruitpipe/recruitpipe/internal/store"
)

type mockStarter struct {
	Calls  []string
	Result interview.StartResult
}

func (m *mockStarter) Start(ctx context.Context, url, company, position string) interview.StartResult {
	m.Calls = append(m.Calls, url)
	return m.Result
}

type mockNotifier struct {
	Notified []models.EscalationSummary
}

func (m *mockNotifier) NotifyEscalation(ctx context.Context, summary models.EscalationSummary) error {
	m.Notified = append(m.Notified, summary)
	return nil
}

func emailInbound(threadID, content string) channels.Inbound {
	return channels.Inbound{
		ThreadID: threadID,
		Channel:  models.ChannelEmail,
		Content:  content,
		Metadata: map[string]string{
			"source_id": "m-" + threadID,
			"from":      "recruiter@example.com",
			"subject":   "Opportunity",
		},
	}
}

func TestEngineHandleInboundCreatesThread(t *testing.T) {
	st := store.NewInMemoryStore()
	gen := genai.NewMockClient()
	gen.Reply = &models.GeneratedReply{
		Response:  "Sounds interesting, could you share the compensation range?",
		NextStage: models.StageInformationGathering,
		ExtractedInfo: models.ExtractedInfo{
			Company:       "Acme",
			RecruiterName: "Jordan",
		},
	}
	engine := NewEngine(st, gen, nil, nil, nil, Config{AutoReply: true})

	outcome, err := engine.HandleInbound(context.Background(), emailInbound("thread-1", "Hi, I have a role at Acme."))
	if err != nil {
		t.Fatalf("HandleInbound failed: %v", err)
	}
	if !outcome.SendReply || outcome.Response == "" {
		t.Errorf("expected sendable reply, got %+v", outcome)
	}

	state, err := st.GetConversation("thread-1")
	if err != nil || state == nil {
		t.Fatalf("conversation missing: %v", err)
	}
	if state.Stage != models.StageInformationGathering {
		t.Errorf("stage = %s, want information_gathering", state.Stage)
	}
	if state.Company != "Acme" || state.RecruiterName != "Jordan" {
		t.Errorf("extracted fields not merged: %+v", state)
	}
	if len(state.ConversationHistory) != 1 {
		t.Errorf("expected history seeded with the inbound message, got %d", len(state.ConversationHistory))
	}
}

func TestEngineHandleInboundAppendsToExistingThread(t *testing.T) {
	st := store.NewInMemoryStore()
	gen := genai.NewMockClient()
	engine := NewEngine(st, gen, nil, nil, nil, Config{AutoReply: true})

	ctx := context.Background()
	if _, err := engine.HandleInbound(ctx, emailInbound("thread-1", "first message")); err != nil {
		t.Fatalf("first HandleInbound failed: %v", err)
	}
	if _, err := engine.HandleInbound(ctx, emailInbound("thread-1", "second message")); err != nil {
		t.Fatalf("second HandleInbound failed: %v", err)
	}

	state, _ := st.GetConversation("thread-1")
	if len(state.ConversationHistory) != 2 {
		t.Errorf("expected 2 history entries, got %d", len(state.ConversationHistory))
	}
	if state.ConversationHistory[0].Content != "first message" {
		t.Errorf("history order not preserved: %+v", state.ConversationHistory)
	}
}

func TestEngineNeverErasesWithEmpty(t *testing.T) {
	st := store.NewInMemoryStore()
	gen := genai.NewMockClient()
	gen.Reply = &models.GeneratedReply{
		Response:      "Noted.",
		ExtractedInfo: models.ExtractedInfo{Company: "Acme", SalaryRange: "150k-180k"},
	}
	engine := NewEngine(st, gen, nil, nil, nil, Config{})

	ctx := context.Background()
	if _, err := engine.HandleInbound(ctx, emailInbound("thread-1", "role at Acme, 150-180")); err != nil {
		t.Fatalf("HandleInbound failed: %v", err)
	}

	// Second message extracts nothing; existing fields must survive.
	gen.Reply = &models.GeneratedReply{Response: "Noted again."}
	if _, err := engine.HandleInbound(ctx, emailInbound("thread-1", "see you")); err != nil {
		t.Fatalf("HandleInbound failed: %v", err)
	}

	state, _ := st.GetConversation("thread-1")
	if state.Company != "Acme" || state.SalaryRange != "150k-180k" {
		t.Errorf("empty extraction erased fields: %+v", state)
	}
}

func TestEngineMergeIdempotent(t *testing.T) {
	st := store.NewInMemoryStore()
	gen := genai.NewMockClient()
	gen.Reply = &models.GeneratedReply{
		Response:      "Got it.",
		ExtractedInfo: models.ExtractedInfo{Company: "Acme", Position: "Backend Engineer"},
	}
	engine := NewEngine(st, gen, nil, nil, nil, Config{})

	ctx := context.Background()
	engine.HandleInbound(ctx, emailInbound("thread-1", "msg one"))
	first, _ := st.GetConversation("thread-1")
	engine.HandleInbound(ctx, emailInbound("thread-1", "msg two"))
	second, _ := st.GetConversation("thread-1")

	if first.Company != second.Company || first.Position != second.Position || first.Stage != second.Stage {
		t.Errorf("applying the same update twice changed state: %+v vs %+v", first, second)
	}
}

func TestEngineInterviewURLShortCircuits(t *testing.T) {
	st := store.NewInMemoryStore()
	gen := genai.NewMockClient()
	gen.Reply = &models.GeneratedReply{
		Response:           "reply that must not be sent",
		RequiresEscalation: true,
		EscalationReason:   "compensation negotiation",
		ExtractedInfo:      models.ExtractedInfo{Company: "Acme", Position: "SRE"},
	}
	starter := &mockStarter{Result: interview.StartResult{Success: true}}
	notifier := &mockNotifier{}
	engine := NewEngine(st, gen, starter, notifier, nil, Config{AutoReply: true})

	in := emailInbound("thread-1", "Please join the meeting: https://portal.example.com/interview/abc?x=1 for next steps.")
	outcome, err := engine.HandleInbound(context.Background(), in)
	if err != nil {
		t.Fatalf("HandleInbound failed: %v", err)
	}

	if !outcome.InterviewStarted {
		t.Error("expected interview handoff")
	}
	if outcome.SendReply || outcome.Escalated {
		t.Errorf("URL handoff must short-circuit reply and escalation: %+v", outcome)
	}
	if len(starter.Calls) != 1 || starter.Calls[0] != "https://portal.example.com/interview/abc?x=1" {
		t.Errorf("unexpected starter calls: %v", starter.Calls)
	}
	if len(notifier.Notified) != 0 {
		t.Error("escalation must not fire on URL handoff")
	}

	state, _ := st.GetConversation("thread-1")
	if state.Stage != models.StageScheduling {
		t.Errorf("stage = %s, want scheduling", state.Stage)
	}
	if state.Metadata["interview_started"] != "true" || state.Metadata["interview_url"] == "" {
		t.Errorf("handoff metadata missing: %v", state.Metadata)
	}
}

func TestEngineEscalation(t *testing.T) {
	st := store.NewInMemoryStore()
	gen := genai.NewMockClient()
	gen.Reply = &models.GeneratedReply{
		Response:           "draft reply",
		RequiresEscalation: true,
		EscalationReason:   "equity question",
	}
	notifier := &mockNotifier{}
	engine := NewEngine(st, gen, nil, notifier, nil, Config{AutoReply: true})

	ctx := context.Background()
	outcome, err := engine.HandleInbound(ctx, emailInbound("thread-1", "What about equity?"))
	if err != nil {
		t.Fatalf("HandleInbound failed: %v", err)
	}
	if !outcome.Escalated || outcome.SendReply {
		t.Errorf("expected silent escalation, got %+v", outcome)
	}
	if len(notifier.Notified) != 1 || notifier.Notified[0].Reason != "equity question" {
		t.Errorf("unexpected notifications: %+v", notifier.Notified)
	}

	// Marking again with a different reason keeps the flag and takes the
	// latest reason.
	gen.Reply.EscalationReason = "visa sponsorship"
	if _, err := engine.HandleInbound(ctx, emailInbound("thread-1", "And sponsorship?")); err != nil {
		t.Fatalf("second HandleInbound failed: %v", err)
	}
	state, _ := st.GetConversation("thread-1")
	if !state.RequiresEscalation || state.EscalationReason != "visa sponsorship" {
		t.Errorf("escalation not idempotent with latest reason: %+v", state)
	}
}

func TestEngineGenerationFailureFallsBack(t *testing.T) {
	st := store.NewInMemoryStore()
	gen := genai.NewMockClient()
	gen.ReplyErr = errors.New("model unavailable")
	engine := NewEngine(st, gen, nil, nil, nil, Config{AutoReply: true})

	outcome, err := engine.HandleInbound(context.Background(), emailInbound("thread-1", "hello"))
	if err != nil {
		t.Fatalf("generation failure must not propagate: %v", err)
	}
	if !outcome.SendReply || outcome.Response != fallbackReply {
		t.Errorf("expected canned fallback reply, got %+v", outcome)
	}
}

func TestEngineApprovalQueue(t *testing.T) {
	st := store.NewInMemoryStore()
	gen := genai.NewMockClient()
	gen.Reply = &models.GeneratedReply{Response: "Proposed reply text."}
	path := filepath.Join(t.TempDir(), "pending.txt")
	approvals, err := approval.NewLog(path)
	if err != nil {
		t.Fatalf("NewLog failed: %v", err)
	}
	engine := NewEngine(st, gen, nil, nil, approvals, Config{AutoReply: true, RequireApproval: true})

	outcome, err := engine.HandleInbound(context.Background(), emailInbound("thread-1", "hello"))
	if err != nil {
		t.Fatalf("HandleInbound failed: %v", err)
	}
	if !outcome.QueuedForApproval || outcome.SendReply {
		t.Errorf("expected queued outcome, got %+v", outcome)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("approval log not written: %v", err)
	}
	if !strings.Contains(string(data), "Proposed reply text.") {
		t.Errorf("approval log missing response:\n%s", data)
	}
}

func TestEngineAutoReplyDisabled(t *testing.T) {
	st := store.NewInMemoryStore()
	gen := genai.NewMockClient()
	engine := NewEngine(st, gen, nil, nil, nil, Config{AutoReply: false})

	outcome, err := engine.HandleInbound(context.Background(), emailInbound("thread-1", "hello"))
	if err != nil {
		t.Fatalf("HandleInbound failed: %v", err)
	}
	if outcome.SendReply || outcome.QueuedForApproval {
		t.Errorf("expected silent outcome, got %+v", outcome)
	}
}

func TestEngineOptOutAndSeen(t *testing.T) {
	st := store.NewInMemoryStore()
	gen := genai.NewMockClient()
	engine := NewEngine(st, gen, nil, nil, nil, Config{})

	ctx := context.Background()
	// Opt-out from a never-seen sender still records the directive, so the
	// thread exists declined and the message id is deduped.
	unknown := channels.Inbound{
		ThreadID: "sms_+15550000000",
		Channel:  models.ChannelSMS,
		Content:  "STOP",
		Metadata: map[string]string{"source_id": "SM9"},
	}
	if err := engine.HandleOptOut(ctx, unknown); err != nil {
		t.Fatalf("opt-out on unknown thread failed: %v", err)
	}
	if !engine.SeenMessage("sms_+15550000000", "SM9") {
		t.Error("opt-out message must be recorded for dedupe")
	}
	if state, _ := st.GetConversation("sms_+15550000000"); state == nil || state.Stage != models.StageDeclined {
		t.Errorf("opt-out thread not declined: %+v", state)
	}

	in := channels.Inbound{
		ThreadID: "sms_+15551234567",
		Channel:  models.ChannelSMS,
		Content:  "Interested in a new role?",
		Metadata: map[string]string{"source_id": "SM1"},
	}
	if _, err := engine.HandleInbound(ctx, in); err != nil {
		t.Fatalf("HandleInbound failed: %v", err)
	}
	if !engine.SeenMessage("sms_+15551234567", "SM1") {
		t.Error("expected source id to be seen after handling")
	}
	if engine.SeenMessage("sms_+15551234567", "SM2") {
		t.Error("unknown source id must not be seen")
	}

	stop := channels.Inbound{
		ThreadID: "sms_+15551234567",
		Channel:  models.ChannelSMS,
		Content:  "STOP",
		Metadata: map[string]string{"source_id": "SM2"},
	}
	if err := engine.HandleOptOut(ctx, stop); err != nil {
		t.Fatalf("HandleOptOut failed: %v", err)
	}
	state, _ := st.GetConversation("sms_+15551234567")
	if state.Stage != models.StageDeclined {
		t.Errorf("stage = %s, want declined", state.Stage)
	}
	if !engine.SeenMessage("sms_+15551234567", "SM2") {
		t.Error("stop message must appear in history for dedupe")
	}
	if len(state.ConversationHistory) != 2 {
		t.Errorf("history length = %d, want 2", len(state.ConversationHistory))
	}
}

func TestEngineStatusReport(t *testing.T) {
	st := store.NewInMemoryStore()
	gen := genai.NewMockClient()
	gen.Reply = &models.GeneratedReply{
		Response:           "x",
		RequiresEscalation: true,
		EscalationReason:   "needs human",
	}
	engine := NewEngine(st, gen, nil, &mockNotifier{}, nil, Config{AutoReply: true})

	ctx := context.Background()
	engine.HandleInbound(ctx, emailInbound("thread-1", "hello"))
	gen.Reply = &models.GeneratedReply{Response: "y"}
	engine.HandleInbound(ctx, channels.Inbound{
		ThreadID: "sms_+15551234567",
		Channel:  models.ChannelSMS,
		Content:  "hi",
	})

	report, err := engine.StatusReport()
	if err != nil {
		t.Fatalf("StatusReport failed: %v", err)
	}
	if report.TotalConversations != 2 {
		t.Errorf("total = %d, want 2", report.TotalConversations)
	}
	if report.ByChannel[models.ChannelEmail] != 1 || report.ByChannel[models.ChannelSMS] != 1 {
		t.Errorf("unexpected channel counts: %v", report.ByChannel)
	}
	if len(report.RequiringEscalation) != 1 || report.RequiringEscalation[0].ThreadID != "thread-1" {
		t.Errorf("unexpected escalations: %+v", report.RequiringEscalation)
	}

	formatted := FormatStatusReport(report)
	if !strings.Contains(formatted, "Active Conversations: 2") {
		t.Errorf("unexpected formatted report:\n%s", formatted)
	}
}
