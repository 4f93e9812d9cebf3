package callbacks

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		raw, key, payload string
	}{
		{"materia:Física", "materia", "Física"},
		{"topico:Física:Cinemática", "topico", "Física:Cinemática"},
		{"r:2:1", "r", "2:1"},
		{"\fminota:Física/Ondas", "minota", "Física/Ondas"},
		{"ranking", "ranking", ""},
	}
	for _, tc := range cases {
		k, p := Parse(tc.raw)
		if k != tc.key || p != tc.payload {
			t.Errorf("Parse(%q) = %q, %q; want %q, %q", tc.raw, k, p, tc.key, tc.payload)
		}
	}
}

func TestDataRoundTrip(t *testing.T) {
	raw := Data("topico", "Química", "Estequiometría")
	if raw != "topico:Química:Estequiometría" {
		t.Fatalf("Data = %q", raw)
	}
	if k, p := Parse(raw); k != "topico" || p != "Química:Estequiometría" {
		t.Fatalf("Parse(Data) = %q, %q", k, p)
	}
	if Data("ranking") != "ranking" {
		t.Fatal("key without payload must not carry a separator")
	}
}
