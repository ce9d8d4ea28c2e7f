package nexus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/caedis/mod-updater/internal/helper"
	"github.com/caedis/mod-updater/internal/helper/helpertest"
	"github.com/caedis/mod-updater/internal/metadata"
	"github.com/caedis/mod-updater/internal/schedule"
)

func TestValidate(t *testing.T) {
	poller := schedule.New(time.Millisecond)
	parser := metadata.NewTextParser()

	tests := []struct {
		name        string
		key         string
		reply       helpertest.Reply
		wantErr     error
		wantValid   bool
		wantPremium bool
		wantCalls   int
	}{
		{
			name:        "premium account",
			key:         "k",
			reply:       helpertest.Reply{Output: `{"user_id":1,"key":"k","name":"driver","is_premium":true}`, ExitAfter: 2},
			wantValid:   true,
			wantPremium: true,
			wantCalls:   1,
		},
		{
			name:      "free account",
			key:       "k",
			reply:     helpertest.Reply{Output: `{"user_id":1,"key":"k","name":"driver","is_premium":false}`},
			wantValid: true,
			wantCalls: 1,
		},
		{
			name:      "rejected key",
			key:       "bad",
			reply:     helpertest.Reply{Output: `{"message":"Please provide a valid API Key"}`},
			wantErr:   metadata.ErrParseFailure,
			wantCalls: 1,
		},
		{
			name:      "helper hangs",
			key:       "k",
			reply:     helpertest.Reply{Hang: true},
			wantErr:   helper.ErrTimeout,
			wantCalls: 1,
		},
		{
			name: "no key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &helpertest.Runner{Handler: func([]string) helpertest.Reply { return tt.reply }}
			s := NewSession(tt.key)
			if s.Ready() {
				t.Fatalf("new session should not be ready")
			}

			err := s.Validate(context.Background(), r, poller, parser)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err=%v want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Validate failed: %v", err)
			}

			if !s.Ready() {
				t.Fatalf("session should be ready after Validate")
			}
			if s.Valid() != tt.wantValid || s.Premium() != tt.wantPremium {
				t.Fatalf("valid=%t premium=%t want %t %t", s.Valid(), s.Premium(), tt.wantValid, tt.wantPremium)
			}
			if got := len(r.Calls()); got != tt.wantCalls {
				t.Fatalf("calls=%d want %d", got, tt.wantCalls)
			}
			if tt.wantValid && s.Account() != "driver" {
				t.Fatalf("Account=%q want driver", s.Account())
			}
		})
	}
}

func TestMarkInvalidClearsPremium(t *testing.T) {
	s := NewSession("k")
	s.MarkValidated("driver", true)
	if !s.Premium() {
		t.Fatalf("Premium=false after MarkValidated")
	}
	s.MarkInvalid()
	if s.Premium() || s.Valid() || s.Account() != "" {
		t.Fatalf("MarkInvalid left valid=%t premium=%t account=%q", s.Valid(), s.Premium(), s.Account())
	}
}
