package identity

import "testing"

func TestDocument_PDSEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		services []DocService
		want     string
		wantOK   bool
	}{
		{
			name:     "fragment id",
			services: []DocService{{ID: "#atproto_pds", Type: "AtprotoPersonalDataServer", ServiceEndpoint: "https://pds.example.com"}},
			want:     "https://pds.example.com",
			wantOK:   true,
		},
		{
			name:     "full id trailing slash",
			services: []DocService{{ID: "did:plc:abc#atproto_pds", Type: "AtprotoPersonalDataServer", ServiceEndpoint: "https://pds.example.com/"}},
			want:     "https://pds.example.com",
			wantOK:   true,
		},
		{
			name: "skips other services",
			services: []DocService{
				{ID: "#bsky_fg", Type: "BskyFeedGenerator", ServiceEndpoint: "https://feed.example.com"},
				{ID: "#atproto_pds", ServiceEndpoint: "https://pds.example.com"},
			},
			want:   "https://pds.example.com",
			wantOK: true,
		},
		{
			name:     "wrong type",
			services: []DocService{{ID: "#atproto_pds", Type: "Other", ServiceEndpoint: "https://pds.example.com"}},
			wantOK:   false,
		},
		{
			name:     "empty endpoint",
			services: []DocService{{ID: "#atproto_pds", Type: "AtprotoPersonalDataServer"}},
			wantOK:   false,
		},
		{
			name:   "no services",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &Document{ID: "did:plc:abc", Service: tt.services}
			got, ok := doc.PDSEndpoint()
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("PDSEndpoint() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestDocument_DeclaredHandle(t *testing.T) {
	doc := &Document{AlsoKnownAs: []string{"https://example.com", "at://Alice.Example.com"}}
	got, ok := doc.DeclaredHandle()
	if !ok || got != "alice.example.com" {
		t.Errorf("DeclaredHandle() = (%q, %v), want (%q, true)", got, ok, "alice.example.com")
	}

	if _, ok := (&Document{}).DeclaredHandle(); ok {
		t.Error("DeclaredHandle() on empty document should report false")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice.bsky.social", "alice.bsky.social"},
		{"@Alice.Bsky.Social", "alice.bsky.social"},
		{"  bob.test\n", "bob.test"},
		{"did:plc:AbC", "did:plc:AbC"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
