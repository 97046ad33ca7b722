package dates

import "testing"

func TestParseMetadataDate(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{raw: "1880", want: "1880-01-01", wantOK: true},
		{raw: "1880-05", want: "1880-05-01", wantOK: true},
		{raw: "May 1880", want: "1880-05-01", wantOK: true},
		{raw: "June", want: "2016-06-01", wantOK: true},
		{raw: "2014-03-12", want: "2014-03-12", wantOK: true},
		{raw: "2014-03-12T10:11:12Z", want: "2014-03-12", wantOK: true},
		{raw: "-500", want: "-500", wantOK: true},
		{raw: "2999", wantOK: false},
		{raw: "1880-13", wantOK: false},
		{raw: "", wantOK: false},
		{raw: "not a date", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseMetadataDate(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ParseMetadataDate(%q) ok = %v, want %v (value %q)", tt.raw, ok, tt.wantOK, got)
			}
			if ok && got != tt.want {
				t.Errorf("ParseMetadataDate(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
