package i18n

import "testing"

func TestFallbackChain(t *testing.T) {
	tr := &Translator{system: []string{"de_AT.UTF-8"}}
	if got := tr.T("today"); got != "Heute" {
		t.Errorf("system locale base language: got %q", got)
	}

	tr.SetLanguage("en")
	if got := tr.T("today"); got != "Today" {
		t.Errorf("override: got %q", got)
	}

	tr.SetLanguage("auto")
	if tr.Language() != "" {
		t.Errorf("auto should clear the override, got %q", tr.Language())
	}

	tr = &Translator{system: []string{"ja_JP.UTF-8"}}
	if got := tr.T("today"); got != "Today" {
		t.Errorf("missing catalog should fall back to en, got %q", got)
	}
	if got := tr.T("no_such_key"); got != "no_such_key" {
		t.Errorf("unknown key: got %q", got)
	}
}

func TestTf(t *testing.T) {
	tr := &Translator{override: "en"}
	if got := tr.Tf("topic_group", "home"); got != "+home" {
		t.Errorf("Tf = %q", got)
	}
}

func TestExpand(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"de_CH.UTF-8", []string{"de-CH", "de"}},
		{"en", []string{"en"}},
		{"C", nil},
		{"", nil},
		{"sv_SE@euro", []string{"sv-SE", "sv"}},
	}
	for _, tt := range tests {
		got := expand(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("expand(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("expand(%q) = %v, want %v", tt.in, got, tt.want)
			}
		}
	}
}

func TestCatalogsShareKeys(t *testing.T) {
	cats, err := load()
	if err != nil {
		t.Fatal(err)
	}
	en := cats[DefaultLanguage]
	if len(en) == 0 {
		t.Fatal("default catalog empty")
	}
	for code, m := range cats {
		for k := range en {
			if _, ok := m[k]; !ok {
				t.Errorf("%s is missing %q", code, k)
			}
		}
	}
	if langs := Languages(); len(langs) != len(cats) || langs[0] != "de" {
		t.Errorf("Languages() = %v", langs)
	}
}
