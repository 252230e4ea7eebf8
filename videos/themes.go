package videos

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// ThemeKind tags how a themes value was stored.
type ThemeKind int

const (
	ThemesEmpty ThemeKind = iota
	ThemesList
	ThemesJSONString
	ThemesPlainString
)

// ThemeField is the storage-boundary form of a video's themes. Rows written
// by older clients hold a JSON array, a bare string or nothing at all; the
// field records which, and List always yields the canonical []string.
type ThemeField struct {
	Kind ThemeKind
	Raw  string
	list []string
}

// List returns the normalized themes.
func (f ThemeField) List() []string {
	switch f.Kind {
	case ThemesList:
		return f.list
	case ThemesEmpty:
		return []string{}
	}
	return NormalizeThemes(f.Raw)
}

// ThemesOf wraps an already-normalized list.
func ThemesOf(list []string) ThemeField {
	if list == nil {
		list = []string{}
	}
	return ThemeField{Kind: ThemesList, list: list}
}

func classify(raw string) ThemeField {
	if raw == "" || raw == "[]" {
		return ThemeField{Kind: ThemesEmpty, Raw: raw}
	}
	var arr []any
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		return ThemeField{Kind: ThemesJSONString, Raw: raw}
	}
	return ThemeField{Kind: ThemesPlainString, Raw: raw}
}

// Scan implements sql.Scanner.
func (f *ThemeField) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*f = ThemeField{Kind: ThemesEmpty}
	case string:
		*f = classify(v)
	case []byte:
		*f = classify(string(v))
	default:
		return fmt.Errorf("themes: unsupported column type %T", src)
	}
	return nil
}

// Value implements driver.Valuer. Writes always store a JSON array.
func (f ThemeField) Value() (driver.Value, error) {
	b, err := json.Marshal(f.List())
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// UnmarshalJSON accepts an array, a JSON-encoded array string, a plain
// string or null.
func (f *ThemeField) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = ThemesOf(list)
		return nil
	}
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("themes must be a list or a string")
	}
	if s == nil {
		*f = ThemeField{Kind: ThemesEmpty}
		return nil
	}
	*f = classify(*s)
	return nil
}

// MarshalJSON always emits the normalized list.
func (f ThemeField) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.List())
}

// NormalizeThemes coerces a themes value into a list of strings. A list is
// returned as is; nil, "" and "[]" give an empty list; a string holding a
// JSON array yields that array's string elements; any other string becomes
// a single-element list. It never fails and is idempotent.
func NormalizeThemes(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case nil:
		return []string{}
	case ThemeField:
		return t.List()
	case *string:
		if t == nil {
			return []string{}
		}
		return NormalizeThemes(*t)
	case []any:
		return stringElems(t)
	case string:
		if t == "" || t == "[]" {
			return []string{}
		}
		var decoded any
		if err := json.Unmarshal([]byte(t), &decoded); err == nil {
			if arr, ok := decoded.([]any); ok {
				return stringElems(arr)
			}
		}
		return []string{t}
	}
	return []string{fmt.Sprint(v)}
}

func stringElems(arr []any) []string {
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// SuggestThemes filters known themes for tag input. Input must start with
// "/"; the rest is matched as a case-insensitive prefix. Results keep the
// order of known and skip duplicates.
func SuggestThemes(input string, known []string) []string {
	if !strings.HasPrefix(input, "/") {
		return []string{}
	}
	prefix := strings.ToLower(strings.TrimLeft(input, "/"))
	out := []string{}
	seen := map[string]bool{}
	for _, th := range known {
		if seen[th] {
			continue
		}
		if strings.HasPrefix(strings.ToLower(th), prefix) {
			seen[th] = true
			out = append(out, th)
		}
	}
	return out
}

// CommitTag adds input to tags after stripping leading slashes and
// surrounding space. Empty or already-present tags leave tags unchanged.
func CommitTag(input string, tags []string) []string {
	tag := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(input), "/"))
	if tag == "" {
		return tags
	}
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	return append(tags, tag)
}

// CleanThemes runs every element through CommitTag, yielding a trimmed,
// deduplicated list.
func CleanThemes(in []string) []string {
	out := []string{}
	for _, t := range in {
		out = CommitTag(t, out)
	}
	return out
}
