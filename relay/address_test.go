package relay

import "testing"

func TestStripBrackets(t *testing.T) {
	cases := []struct {
		input  string
		expect string
	}{
		{"[::1]", "::1"},
		{"::1", "::1"},
		{"[2001:db8::2]", "2001:db8::2"},
		{"127.0.0.1", "127.0.0.1"},
		{"localhost", "localhost"},
		{"[]", ""},
		{"", ""},
		{"[", "["},
		{"]", "]"},
	}
	for _, c := range cases {
		if got := StripBrackets(c.input); got != c.expect {
			t.Errorf("StripBrackets(%q) = %q, want %q", c.input, got, c.expect)
		}
	}
}

func TestNetworkFor(t *testing.T) {
	cases := []struct {
		host   string
		expect string
	}{
		{"::1", "tcp6"},
		{"2001:db8::2", "tcp6"},
		{"127.0.0.1", "tcp4"},
		{"localhost", "tcp4"},
		{"example.com", "tcp4"},
	}
	for _, c := range cases {
		if got := NetworkFor(c.host); got != c.expect {
			t.Errorf("NetworkFor(%q) = %q, want %q", c.host, got, c.expect)
		}
	}
}

func TestJoinEndpoint(t *testing.T) {
	if got := JoinEndpoint("::1", 2101); got != "[::1]:2101" {
		t.Errorf("JoinEndpoint IPv6 = %q", got)
	}
	if got := JoinEndpoint("127.0.0.1", 8080); got != "127.0.0.1:8080" {
		t.Errorf("JoinEndpoint IPv4 = %q", got)
	}
}
