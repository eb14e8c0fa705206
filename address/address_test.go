package address

import "testing"

func TestFromPublicKeyHexGenesis(t *testing.T) {
	// Genesis public key / address pair from the specification's genesis
	// replay scenario.
	pubKeyHex := "03f44c7c4dca3a9204f1ba284d875331894ea8ab5753093be847d798274c6ce570"
	want := "1iNw3QHVs45woB9TmXL1XWHyKniTJhzC4"

	got, err := FromPublicKeyHex(pubKeyHex)
	if err != nil {
		t.Fatalf("FromPublicKeyHex: %v", err)
	}
	if got != want {
		t.Errorf("address = %s, want %s", got, want)
	}
}

func TestInvalidPublicKey(t *testing.T) {
	for _, bad := range []string{"", "zz", "aabb"} {
		if _, err := FromPublicKeyHex(bad); err == nil {
			t.Errorf("expected error for input %q", bad)
		}
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	pubKeyHex := "03f44c7c4dca3a9204f1ba284d875331894ea8ab5753093be847d798274c6ce570"
	addr, err := FromPublicKeyHex(pubKeyHex)
	if err != nil {
		t.Fatalf("FromPublicKeyHex: %v", err)
	}
	version, payload, err := Decode(addr)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if version != VersionMainnet {
		t.Errorf("version = %#x, want %#x", version, VersionMainnet)
	}
	if len(payload) != 20 {
		t.Errorf("payload length = %d, want 20", len(payload))
	}
}

func TestDecodeChecksumMismatch(t *testing.T) {
	if _, _, err := Decode("1iNw3QHVs45woB9TmXL1XWHyKniTJhzC5"); err == nil {
		t.Error("expected checksum mismatch error")
	}
}
