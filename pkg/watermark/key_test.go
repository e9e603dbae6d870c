package watermark

import (
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "connector only",
			key:  Key{Connector: "frontapp"},
			want: "wm:frontapp:lastTs",
		},
		{
			name: "connector and instance",
			key:  Key{Connector: "calendly", Instance: "acme"},
			want: "wm:calendly:acme:lastTs",
		},
		{
			name: "custom slot and prefix",
			key:  Key{Prefix: "poller", Connector: "vercel", Instance: "team_1", Slot: "deployments"},
			want: "poller:vercel:team_1:deployments",
		},
		{
			name: "separators are escaped",
			key:  Key{Connector: "calendly", Instance: "org:42"},
			want: "wm:calendly:org_42:lastTs",
		},
		{
			name: "whitespace trimmed",
			key:  Key{Connector: " vercel ", Slot: " deployments"},
			want: "wm:vercel:deployments",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("Key.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_String_Deterministic(t *testing.T) {
	key := Key{Connector: "calendly", Instance: "acme", Slot: "events"}

	first := key.String()
	for i := 0; i < 100; i++ {
		if got := key.String(); got != first {
			t.Fatalf("Key.String() not deterministic: %q vs %q", got, first)
		}
	}
}

func TestKey_String_InstancesDiffer(t *testing.T) {
	a := Key{Connector: "calendly", Instance: "a"}
	b := Key{Connector: "calendly", Instance: "b"}
	if a.String() == b.String() {
		t.Errorf("instances share a key: %q", a.String())
	}
}
