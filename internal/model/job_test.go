package model

import (
	"encoding/json"
	"testing"
)

func TestJob_Validate(t *testing.T) {
	tests := []struct {
		name    string
		job     Job
		wantErr bool
	}{
		{name: "valid", job: Job{SessionID: "s1", Kind: KindProcessSession}},
		{name: "valid with payload", job: Job{SessionID: "s1", Kind: KindRecommend, InputPayload: json.RawMessage(`{"force":true}`)}},
		{name: "missing session", job: Job{Kind: KindProcessSession}, wantErr: true},
		{name: "unknown kind", job: Job{SessionID: "s1", Kind: "nope"}, wantErr: true},
		{name: "bad progress", job: Job{SessionID: "s1", Kind: KindRecategorize, Progress: 101}, wantErr: true},
		{name: "bad payload", job: Job{SessionID: "s1", Kind: KindProcessSession, InputPayload: json.RawMessage(`{`)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	for status, want := range map[JobStatus]bool{
		JobQueued:     false,
		JobProcessing: false,
		JobCompleted:  true,
		JobFailed:     true,
	} {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestDecodeJobInput(t *testing.T) {
	in, err := DecodeJobInput(nil)
	if err != nil || in.Profile != nil {
		t.Fatalf("DecodeJobInput(nil) = %+v, %v", in, err)
	}

	in, err = DecodeJobInput(json.RawMessage(`{"profile":{"monthlyIncome":50000,"creditScore":740},"force":true}`))
	if err != nil {
		t.Fatalf("DecodeJobInput() error = %v", err)
	}
	if !in.Force || in.Profile == nil || in.Profile.CreditScore != 740 {
		t.Errorf("DecodeJobInput() = %+v", in)
	}

	if _, err := DecodeJobInput(json.RawMessage(`[1]`)); err == nil {
		t.Error("DecodeJobInput() expected error for array payload")
	}
}
