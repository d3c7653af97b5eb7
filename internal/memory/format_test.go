package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  string
	}{
		{
			name:  "no metadata",
			entry: Entry{Content: "hello"},
			want:  "<entry><content>hello</content><metadata></metadata></entry>",
		},
		{
			name:  "empty metadata",
			entry: Entry{Content: "hello", Metadata: map[string]any{}},
			want:  "<entry><content>hello</content><metadata></metadata></entry>",
		},
		{
			name:  "metadata keys sorted",
			entry: Entry{Content: "a<b", Metadata: map[string]any{"z": 1, "a": "x&y"}},
			want:  `<entry><content>a<b</content><metadata>{"a": "x&y", "z": 1}</metadata></entry>`,
		},
		{
			name: "nested values use the same separators",
			entry: Entry{Content: "trip", Metadata: map[string]any{
				"tags":  []any{"rail", "night"},
				"train": map[string]any{"seats": float64(2), "car": "sleeper"},
				"paid":  true,
				"note":  nil,
				"cost":  12.5,
			}},
			want: `<entry><content>trip</content><metadata>{"cost": 12.5, "note": null, "paid": true, "tags": ["rail", "night"], "train": {"car": "sleeper", "seats": 2}}</metadata></entry>`,
		},
		{
			name:  "non-ASCII is escaped",
			entry: Entry{Content: "café", Metadata: map[string]any{"city": "Zürich", "mood": "🙂", "quote": "say \"hi\"\n"}},
			want:  `<entry><content>café</content><metadata>{"city": "Z\u00fcrich", "mood": "\ud83d\ude42", "quote": "say \"hi\"\n"}</metadata></entry>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatEntry(tt.entry))
		})
	}
}
