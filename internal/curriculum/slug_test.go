package curriculum

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Quran Reading", "quran-reading"},
		{"Qā'idah Nūrāniyyah", "qa-idah-nuraniyyah"},
		{"Tajwīd — Level 2", "tajwid-level-2"},
		{"  spaced  out  ", "spaced-out"},
		{"ALLCAPS", "allcaps"},
		{"already-a-slug", "already-a-slug"},
		{"---", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
