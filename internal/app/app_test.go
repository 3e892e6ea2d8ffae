package app

import (
	"net"
	"testing"
)

func TestPreferredIP(t *testing.T) {
	ip := PreferredIP()
	if ip == "" {
		t.Fatal("PreferredIP returned empty string")
	}
	if ip != "localhost" && net.ParseIP(ip) == nil {
		t.Errorf("got %q, want an IP address or localhost", ip)
	}
}
