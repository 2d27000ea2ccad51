package models

import "testing"

func TestIsValidChannel(t *testing.T) {
	for _, c := range []Channel{ChannelEmail, ChannelSMS, ChannelVoice} {
		if !IsValidChannel(c) {
			t.Errorf("IsValidChannel(%s) = false, want true", c)
		}
	}
	for _, c := range []Channel{"", "whatsapp", "EMAIL"} {
		if IsValidChannel(c) {
			t.Errorf("IsValidChannel(%q) = true, want false", c)
		}
	}
}

func TestIsValidStage(t *testing.T) {
	valid := []Stage{
		StageInitialContact, StageInformationGathering, StageScreening,
		StageNegotiation, StageScheduling, StageDeclined,
	}
	for _, s := range valid {
		if !IsValidStage(s) {
			t.Errorf("IsValidStage(%s) = false, want true", s)
		}
	}
	for _, s := range []Stage{"", "hired", "Initial_Contact"} {
		if IsValidStage(s) {
			t.Errorf("IsValidStage(%q) = true, want false", s)
		}
	}
}

func TestMessageValidate(t *testing.T) {
	msg := Message{Channel: ChannelEmail, Direction: DirectionIncoming, Content: "hello"}
	if err := msg.Validate(); err != nil {
		t.Errorf("valid message rejected: %v", err)
	}

	msg.Channel = "fax"
	if err := msg.Validate(); err != ErrInvalidChannel {
		t.Errorf("invalid channel: got %v, want ErrInvalidChannel", err)
	}

	msg.Channel = ChannelSMS
	msg.Content = ""
	if err := msg.Validate(); err != ErrEmptyContent {
		t.Errorf("empty content: got %v, want ErrEmptyContent", err)
	}
}
