package dataservice

import "testing"

func TestDecodeList(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{name: "bare array", raw: `[{"id":1},{"id":2}]`, want: 2},
		{name: "envelope", raw: ` {"data":[{"id":1}],"meta":{"total":1}}`, want: 1},
		{name: "empty body", raw: "", want: 0},
		{name: "null", raw: "null", want: 0},
		{name: "envelope null", raw: `{"data":null}`, want: 0},
		{name: "object without data", raw: `{"id":1}`, wantErr: true},
		{name: "garbage", raw: `[{`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeList[accommodation]([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (got == nil || len(got) != tt.want) {
				t.Errorf("got %#v, want %d items", got, tt.want)
			}
		})
	}
}

func TestDecodeRecord(t *testing.T) {
	var a accommodation
	if err := DecodeRecord([]byte(`{"data":{"id":3,"name":"Loft"}}`), &a); err != nil || a.ID != 3 {
		t.Errorf("envelope: %+v, %v", a, err)
	}
	if err := DecodeRecord([]byte(`{"id":4}`), &a); err != nil || a.ID != 4 {
		t.Errorf("bare: %+v, %v", a, err)
	}
	if err := DecodeRecord(nil, &a); err == nil {
		t.Error("expected error for empty body")
	}
}

func TestMediaResolver(t *testing.T) {
	r, err := NewMediaResolver("https://cdn.example.com/media")
	if err != nil {
		t.Fatal(err)
	}
	tests := map[string]string{
		"thumbs/1.jpg":                  "https://cdn.example.com/media/thumbs/1.jpg",
		"/thumbs/2.jpg":                 "https://cdn.example.com/media/thumbs/2.jpg",
		"https://img.example.com/3.png": "https://img.example.com/3.png",
		"":                              "",
	}
	for in, want := range tests {
		if got := r.Resolve(in); got != want {
			t.Errorf("Resolve(%q) = %q, want %q", in, got, want)
		}
	}

	passthrough, err := NewMediaResolver("")
	if err != nil || passthrough.Resolve("a.jpg") != "a.jpg" {
		t.Errorf("empty base should pass through, err=%v", err)
	}
	if _, err := NewMediaResolver("relative/path"); err == nil {
		t.Error("expected error for relative base")
	}
}
