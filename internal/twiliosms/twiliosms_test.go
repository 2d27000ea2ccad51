package twiliosms

import (
	"context"
	"testing"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(); err == nil {
		t.Error("expected error with no credentials")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok")); err == nil {
		t.Error("expected error with no from number")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok"), WithFromNumber("+15551234567")); err != nil {
		t.Errorf("expected client with full options, got %v", err)
	}
}

func TestNewClientEnvFallback(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "AC456")
	t.Setenv("TWILIO_AUTH_TOKEN", "envtok")
	t.Setenv("TWILIO_FROM_NUMBER", "+15557654321")

	client, err := NewClient()
	if err != nil {
		t.Fatalf("NewClient with env credentials failed: %v", err)
	}
	if client.fromNumber != "+15557654321" {
		t.Errorf("fromNumber = %q", client.fromNumber)
	}
}

func TestMockClientListLimit(t *testing.T) {
	mock := NewMockClient()
	mock.Inbound = []InboundMessage{
		{SID: "SM1", From: "+15550000001", Body: "a"},
		{SID: "SM2", From: "+15550000002", Body: "b"},
		{SID: "SM3", From: "+15550000003", Body: "c"},
	}

	msgs, err := mock.ListInbound(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListInbound failed: %v", err)
	}
	if len(msgs) != 2 || msgs[0].SID != "SM1" {
		t.Errorf("unexpected page: %+v", msgs)
	}

	if err := mock.SendMessage(context.Background(), "+15550000001", "reply"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if len(mock.SentMessages) != 1 || mock.SentMessages[0].Body != "reply" {
		t.Errorf("sent messages not recorded: %+v", mock.SentMessages)
	}
}
