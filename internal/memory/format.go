package memory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// FormatEntry renders an entry for a tool response:
//
//	<entry><content>{content}</content><metadata>{json}</metadata></entry>
//
// The metadata element is empty when there is no metadata.
func FormatEntry(e Entry) string {
	return fmt.Sprintf("<entry><content>%s</content><metadata>%s</metadata></entry>", e.Content, metadataJSON(e.Metadata))
}

// metadataJSON writes md in the layout clients of the Python server parse:
// ", " and ": " separators, non-ASCII escaped as \uXXXX, keys sorted.
func metadataJSON(md map[string]any) string {
	if len(md) == 0 {
		return ""
	}

	raw, err := json.Marshal(md)
	if err != nil {
		return fmt.Sprintf("%v", md)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(raw)
	}

	var b strings.Builder
	writeValue(&b, v)
	return b.String()
}

func writeValue(b *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if x {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case json.Number:
		b.WriteString(x.String())
	case string:
		writeString(b, x)
	case []any:
		b.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				b.WriteString(", ")
			}
			writeValue(b, e)
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			writeString(b, k)
			b.WriteString(": ")
			writeValue(b, x[k])
		}
		b.WriteByte('}')
	default:
		fmt.Fprintf(b, "%v", x)
	}
}

func writeString(b *strings.Builder, s string) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	quoted := strings.TrimSuffix(buf.String(), "\n")

	for _, r := range quoted {
		if r < 0x80 {
			b.WriteRune(r)
			continue
		}
		if r > 0xFFFF {
			hi, lo := utf16.EncodeRune(r)
			fmt.Fprintf(b, `\u%04x\u%04x`, hi, lo)
			continue
		}
		fmt.Fprintf(b, `\u%04x`, r)
	}
}
