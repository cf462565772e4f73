package protocol

import "testing"

func TestEvent_toProto(t *testing.T) {
	tests := []struct {
		name     string
		event    Event
		wantKeys []string
	}{
		{
			name:     "paired carries only the name",
			event:    Paired(),
			wantKeys: []string{fieldEvent},
		},
		{
			name:     "typing false is kept",
			event:    TypingState(false),
			wantKeys: []string{fieldEvent, fieldTyping},
		},
		{
			name:     "presence stats keeps a zero count",
			event:    PresenceStats(0),
			wantKeys: []string{fieldEvent, fieldActive},
		},
		{
			name:     "session ended without reason omits reason",
			event:    SessionEnded(RoleSelf, ""),
			wantKeys: []string{fieldEvent, fieldRole},
		},
		{
			name:     "session ended with reason",
			event:    SessionEnded(RolePartner, "ping timeout"),
			wantKeys: []string{fieldEvent, fieldRole, fieldReason},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.event.toProto().GetFields()
			if len(got) != len(tt.wantKeys) {
				t.Errorf("toProto() has %d fields, want %d (%v)", len(got), len(tt.wantKeys), tt.wantKeys)
			}
			for _, key := range tt.wantKeys {
				if _, ok := got[key]; !ok {
					t.Errorf("toProto() is missing key %q", key)
				}
			}
		})
	}
}
