package strategy

import (
	"strings"
	"testing"
)

func TestParseLanguage(t *testing.T) {
	cases := []struct {
		in   string
		want Language
	}{
		{"python", Python},
		{"Python", Python},
		{"", Python},
		{"javascript", JavaScript},
		{"js", JavaScript},
		{"node", JavaScript},
		{"nodejs", JavaScript},
		{"c", C},
		{"cpp", CPP},
		{"c++", CPP},
		{"CPP", CPP},
	}
	for _, tc := range cases {
		got, err := ParseLanguage(tc.in)
		if err != nil {
			t.Fatalf("ParseLanguage(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseLanguage(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}

	if _, err := ParseLanguage("java"); err == nil {
		t.Fatal("unsupported language accepted")
	}
}

func TestRunnerTemplates(t *testing.T) {
	for _, lang := range []Language{Python, JavaScript, C, CPP} {
		tmpl, err := runnerTemplate(lang)
		if err != nil {
			t.Fatalf("%s: %v", lang, err)
		}
		if !strings.Contains(tmpl, "%USER_CODE%") {
			t.Fatalf("%s runner template is missing the injection marker", lang)
		}
		// Every runner falls back to STAY when the user code misbehaves.
		if !strings.Contains(tmpl, "STAY") {
			t.Fatalf("%s runner template has no STAY fallback", lang)
		}
	}
}

func TestErrorKindStrings(t *testing.T) {
	cases := map[ErrorKind]string{
		KindCompile:  "CompileError",
		KindCrash:    "RuntimeCrash",
		KindTimeout:  "TimeoutError",
		KindProtocol: "ProtocolError",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Fatalf("%d.String()=%q want=%q", kind, got, want)
		}
	}

	err := &StepError{Kind: KindCrash, Message: "unexpected output \"GO_NORTH\""}
	if got := err.Error(); !strings.HasPrefix(got, "RuntimeCrash: ") {
		t.Fatalf("Error()=%q", got)
	}
}
