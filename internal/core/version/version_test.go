package version

import (
	"errors"
	"testing"
)

func TestFromTag(t *testing.T) {
	tests := []struct {
		tag  string
		want Version
	}{
		{"v2.13.0", Version{Major: 2, Minor: 13, Patch: 0}},
		{"v2.12.14", Version{Major: 2, Minor: 12, Patch: 14}},
		{"v2.14.0-rc1", Version{Major: 2, Minor: 14, Patch: 0, RC: 1}},
		{"v1.5.7-rc12", Version{Major: 1, Minor: 5, Patch: 7, RC: 12}},
	}

	for _, tt := range tests {
		got, err := FromTag(tt.tag)
		if err != nil {
			t.Fatalf("FromTag(%q) returned error: %v", tt.tag, err)
		}
		if got != tt.want {
			t.Errorf("FromTag(%q) = %v, want %v", tt.tag, got, tt.want)
		}
	}
}

func TestFromTagInvalid(t *testing.T) {
	for _, tag := range []string{"2.13.0", "v2.13", "v2.13.0-rc", "release-2.13.0", ""} {
		_, err := FromTag(tag)
		var tagErr *UnexpectedTagError
		if !errors.As(err, &tagErr) {
			t.Errorf("FromTag(%q) error = %v, want UnexpectedTagError", tag, err)
		}
	}
}

func TestFromSeries(t *testing.T) {
	got, err := FromSeries("2.13")
	if err != nil {
		t.Fatalf("FromSeries returned error: %v", err)
	}
	if got.Major != 2 || got.Minor != 13 {
		t.Errorf("FromSeries(\"2.13\") = %v", got)
	}

	for _, series := range []string{"2", "2.13.1", "stable-2.13", ""} {
		_, err := FromSeries(series)
		var seriesErr *InvalidSeriesError
		if !errors.As(err, &seriesErr) {
			t.Errorf("FromSeries(%q) error = %v, want InvalidSeriesError", series, err)
		}
	}
}

func TestString(t *testing.T) {
	if got := (Version{Major: 2, Minor: 13, Patch: 4}).String(); got != "2.13.4" {
		t.Errorf("String() = %q", got)
	}
	if got := (Version{Major: 2, Minor: 14, RC: 2}).String(); got != "2.14.0-rc2" {
		t.Errorf("String() = %q", got)
	}
	if got := (Version{Major: 2, Minor: 13, Patch: 4}).Tag(); got != "v2.13.4" {
		t.Errorf("Tag() = %q", got)
	}
	if got := (Version{Major: 2, Minor: 13, Patch: 4}).Series(); got != "2.13" {
		t.Errorf("Series() = %q", got)
	}
}

func TestNext(t *testing.T) {
	tests := []struct {
		name   string
		latest Version
		typ    Type
		want   Version
	}{
		{
			name:   "candidate after candidate bumps rc",
			latest: Version{Major: 2, Minor: 14, RC: 1},
			typ:    Candidate,
			want:   Version{Major: 2, Minor: 14, RC: 2},
		},
		{
			name:   "stable after candidate resets patch",
			latest: Version{Major: 2, Minor: 14, RC: 3},
			typ:    Stable,
			want:   Version{Major: 2, Minor: 14, Patch: 0},
		},
		{
			name:   "stable after stable bumps patch",
			latest: Version{Major: 2, Minor: 13, Patch: 4},
			typ:    Stable,
			want:   Version{Major: 2, Minor: 13, Patch: 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Next(tt.latest, tt.typ); got != tt.want {
				t.Errorf("Next(%v, %v) = %v, want %v", tt.latest, tt.typ, got, tt.want)
			}
		})
	}
}

func TestFirst(t *testing.T) {
	series, _ := FromSeries("2.14")
	got := First(series)
	want := Version{Major: 2, Minor: 14, RC: 1}
	if got != want {
		t.Errorf("First(2.14) = %v, want %v", got, want)
	}
}
