package rsi

import "testing"

const profilePage = `
<html><body>
  <div class="profile">
    <div class="info">
      <p class="entry"><span class="label">Handle name</span><strong class="value">TestPilot</strong></p>
      <p class="entry"><span class="label">Community Moniker</span><strong class="value">Ace</strong></p>
    </div>
    <div class="entry bio">
      <span class="label">Bio</span>
      <div class="value">Token
        0042 verified</div>
    </div>
  </div>
</body></html>`

func TestExtractBio(t *testing.T) {
	bio, ok := ExtractBio(profilePage)
	if !ok {
		t.Fatal("expected bio to be extracted")
	}
	if bio != "Token 0042 verified" {
		t.Fatalf("bio = %q, want %q", bio, "Token 0042 verified")
	}
}

func TestExtractBioAbsent(t *testing.T) {
	for _, in := range []string{"", "<html><body><p>nothing</p></body></html>", "<<<"} {
		if bio, ok := ExtractBio(in); ok {
			t.Errorf("ExtractBio(%q) = %q, want absent", in, bio)
		}
	}
}

func TestExtractMoniker(t *testing.T) {
	if m := ExtractMoniker(profilePage); m != "Ace" {
		t.Fatalf("moniker = %q, want %q", m, "Ace")
	}
	if m := ExtractMoniker("<p>none</p>"); m != "" {
		t.Fatalf("moniker = %q, want empty", m)
	}
}

func TestExtractHandle(t *testing.T) {
	if h := ExtractHandle(profilePage); h != "TestPilot" {
		t.Fatalf("handle = %q, want %q", h, "TestPilot")
	}
}

func TestTokenMatchesZeroPadding(t *testing.T) {
	bio := "Token 0042 verified"
	for _, token := range []string{"42", "042", "0042"} {
		if !TokenMatches(bio, token) {
			t.Errorf("TokenMatches(%q, %q) = false, want true", bio, token)
		}
	}
	if TokenMatches(bio, "4") {
		t.Error(`TokenMatches(bio, "4") = true, want false`)
	}
}

func TestTokenMatchesWordBoundaries(t *testing.T) {
	cases := []struct {
		bio   string
		token string
		want  bool
	}{
		{"code 1234 here", "1234", true},
		{"x1234y", "1234", true},          // bounded by non-digits
		{"12345", "1234", false},          // run of five digits is not a token
		{"born 1990, token 7777", "7777", true},
		// Several standalone 4-digit numbers: any match counts.
		{"call 5551 or 0042", "42", true},
		{"", "0042", false},
		{"0042", "", false},
		{"0042", "00042", false},
		{"0042", "4a2b", false},
	}
	for _, c := range cases {
		if got := TokenMatches(c.bio, c.token); got != c.want {
			t.Errorf("TokenMatches(%q, %q) = %v, want %v", c.bio, c.token, got, c.want)
		}
	}
}
