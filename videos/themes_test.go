package videos

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestNormalizeThemes(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"nil", nil, []string{}},
		{"empty string", "", []string{}},
		{"empty marker", "[]", []string{}},
		{"list", []string{"music", "live"}, []string{"music", "live"}},
		{"json string", `["a","b"]`, []string{"a", "b"}},
		{"json with non-strings", `["a",1,null,"b"]`, []string{"a", "b"}},
		{"plain string", "gaming", []string{"gaming"}},
		{"json scalar string", `"x"`, []string{`"x"`}},
		{"nil pointer", (*string)(nil), []string{}},
		{"any slice", []any{"x", 2, "y"}, []string{"x", "y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeThemes(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeThemes(%v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeThemesIdempotent(t *testing.T) {
	for _, in := range []any{nil, "", "[]", `["a","b"]`, "solo", []string{"x"}, `{"k":1}`} {
		once := NormalizeThemes(in)
		twice := NormalizeThemes(once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("not idempotent for %v: %v then %v", in, once, twice)
		}
	}
}

func TestThemeFieldScan(t *testing.T) {
	tests := []struct {
		src  any
		kind ThemeKind
		want []string
	}{
		{nil, ThemesEmpty, []string{}},
		{"[]", ThemesEmpty, []string{}},
		{`["a","b"]`, ThemesJSONString, []string{"a", "b"}},
		{[]byte(`["c"]`), ThemesJSONString, []string{"c"}},
		{"plain", ThemesPlainString, []string{"plain"}},
	}
	for _, tt := range tests {
		var f ThemeField
		if err := f.Scan(tt.src); err != nil {
			t.Fatalf("Scan(%v): %v", tt.src, err)
		}
		if f.Kind != tt.kind {
			t.Errorf("Scan(%v) kind = %v, want %v", tt.src, f.Kind, tt.kind)
		}
		if !reflect.DeepEqual(f.List(), tt.want) {
			t.Errorf("Scan(%v) list = %v, want %v", tt.src, f.List(), tt.want)
		}
	}
	var f ThemeField
	if err := f.Scan(42); err == nil {
		t.Error("Scan(int) should fail")
	}
}

func TestThemeFieldValueWritesArray(t *testing.T) {
	f := ThemeField{Kind: ThemesPlainString, Raw: "solo"}
	v, err := f.Value()
	if err != nil {
		t.Fatal(err)
	}
	if v != `["solo"]` {
		t.Errorf("Value() = %v, want [\"solo\"]", v)
	}
}

func TestThemeFieldUnmarshal(t *testing.T) {
	for raw, want := range map[string][]string{
		`["a","b"]`:         {"a", "b"},
		`"[\"x\",\"y\"]"`:   {"x", "y"},
		`"single"`:          {"single"},
		`null`:              {},
	} {
		var f ThemeField
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if !reflect.DeepEqual(f.List(), want) {
			t.Errorf("unmarshal %s = %v, want %v", raw, f.List(), want)
		}
	}
}

func TestSuggestThemes(t *testing.T) {
	known := []string{"Music", "Movies", "gaming", "music"}
	if got := SuggestThemes("/mu", known); !reflect.DeepEqual(got, []string{"Music", "music"}) {
		t.Errorf("SuggestThemes(/mu) = %v", got)
	}
	if got := SuggestThemes("/", known); len(got) != 4 {
		t.Errorf("SuggestThemes(/) = %v, want everything", got)
	}
	if got := SuggestThemes("mu", known); len(got) != 0 {
		t.Errorf("input without slash should give nothing, got %v", got)
	}
}

func TestCommitTag(t *testing.T) {
	tags := CommitTag("//music ", nil)
	tags = CommitTag("music", tags)
	tags = CommitTag("  ", tags)
	tags = CommitTag("/live", tags)
	if !reflect.DeepEqual(tags, []string{"music", "live"}) {
		t.Errorf("tags = %v", tags)
	}
}

func TestInCategory(t *testing.T) {
	v := &Video{Themes: []string{"Music", "live"}}
	tests := map[string]bool{
		"":        true,
		"All":     true,
		"music":   true,
		" live ":  true,
		"sports":  false,
		"Musical": false,
	}
	for category, want := range tests {
		if got := v.InCategory(category); got != want {
			t.Errorf("InCategory(%q) = %v, want %v", category, got, want)
		}
	}
}
