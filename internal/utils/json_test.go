package utils

import "testing"

func TestMarshalNoEscape(t *testing.T) {
	data, err := MarshalNoEscape(map[string]string{"note": "see <dashboard> & alerts"})
	if err != nil {
		t.Fatalf("MarshalNoEscape: %v", err)
	}
	want := `{"note":"see <dashboard> & alerts"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}
