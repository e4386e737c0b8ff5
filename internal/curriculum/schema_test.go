package curriculum

import (
	"strings"
	"testing"
)

func TestValidateSeedDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     map[string]any
		wantErr string
	}{
		{
			name: "minimal valid",
			doc:  map[string]any{"subject": map[string]any{"name": "Tajweed"}},
		},
		{
			name: "full valid",
			doc: map[string]any{
				"subject": map[string]any{"name": "Quran Reading", "slug": "quran-reading"},
				"phases": []any{
					map[string]any{
						"name": "Foundation", "sort_order": 1,
						"stages": []any{
							map[string]any{
								"name": "Letters", "sort_order": 1,
								"milestones": []any{
									map[string]any{"name": "Letter names", "sort_order": 1, "pillar": "understanding"},
								},
							},
						},
					},
				},
			},
		},
		{
			name:    "missing subject",
			doc:     map[string]any{"phases": []any{}},
			wantErr: "subject",
		},
		{
			name:    "empty subject name",
			doc:     map[string]any{"subject": map[string]any{"name": ""}},
			wantErr: "name",
		},
		{
			name: "bad slug",
			doc: map[string]any{
				"subject": map[string]any{"name": "Quran", "slug": "Quran Reading!"},
			},
			wantErr: "slug",
		},
		{
			name: "unknown pillar",
			doc: map[string]any{
				"subject": map[string]any{"name": "Quran"},
				"phases": []any{
					map[string]any{
						"name": "P", "sort_order": 1,
						"stages": []any{
							map[string]any{
								"name": "S", "sort_order": 1,
								"milestones": []any{
									map[string]any{"name": "M", "sort_order": 1, "pillar": "tafsir"},
								},
							},
						},
					},
				},
			},
			wantErr: "pillar",
		},
		{
			name: "zero sort order",
			doc: map[string]any{
				"subject": map[string]any{"name": "Quran"},
				"phases":  []any{map[string]any{"name": "P", "sort_order": 0}},
			},
			wantErr: "sort_order",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSeedDocument(tt.doc)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateSeedDocument() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateSeedDocument() error = nil, want violation")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
