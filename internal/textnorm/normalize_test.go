package textnorm_test

import (
	"reflect"
	"strings"
	"testing"

	"jobmate/matching-service/internal/textnorm"
)

// ── Normalize ──────────────────────────────────────────────────────────────

func TestNormalize_EmptyInput(t *testing.T) {
	n := textnorm.New()
	for _, in := range []string{"", "   ", "\n\t  \n", "<br/><p></p>"} {
		got := n.Normalize(in)
		if got.Text != "" {
			t.Errorf("Normalize(%q).Text = %q, want empty", in, got.Text)
		}
		if len(got.Skills) != 0 {
			t.Errorf("Normalize(%q).Skills = %v, want empty", in, got.Skills)
		}
	}
}

func TestNormalize_StripsMarkupAndLowercases(t *testing.T) {
	n := textnorm.New()
	got := n.Normalize("<h1>Senior  Engineer</h1>\n<p>Write GOOD&nbsp;code!</p> see https://x.io/jobs or mail hr@x.io")
	want := "senior engineer write good code see or mail"
	if got.Text != want {
		t.Errorf("Text = %q, want %q", got.Text, want)
	}
}

func TestNormalize_KeepsSymbolSkills(t *testing.T) {
	n := textnorm.New()
	got := n.Normalize("Experience with C++, C# and Node.js required.")
	want := []string{"c#", "c++", "node.js"}
	if !reflect.DeepEqual(got.Skills, want) {
		t.Errorf("Skills = %v, want %v", got.Skills, want)
	}
}

func TestNormalize_AliasesAndStemming(t *testing.T) {
	n := textnorm.New()
	got := n.Normalize("Built microservices on K8s with Postgres databases; Golang and Amazon Web Services.")
	for _, skill := range []string{"kubernetes", "postgresql", "go", "aws", "microservice"} {
		if !contains(got.Skills, skill) {
			t.Errorf("Skills %v missing %q", got.Skills, skill)
		}
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	n := textnorm.New()
	in := "Python, SQL, AWS, Docker and machine learning. Python again."
	first := n.Normalize(in)
	for i := 0; i < 20; i++ {
		if got := n.Normalize(in); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
	if !reflect.DeepEqual(first.Skills, []string{"aws", "docker", "machine learning", "python", "sql"}) {
		t.Errorf("Skills = %v", first.Skills)
	}
}

func TestTitleKeywordsFromFirstLine(t *testing.T) {
	got := textnorm.TitleKeywords("\n  Backend Engineer (Go) - Payments\nWe need someone for the team.")
	want := []string{"backend", "engineer", "go", "payments"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TitleKeywords = %v, want %v", got, want)
	}
	if got := textnorm.TitleKeywords(" \n "); got != nil {
		t.Errorf("blank text: %v", got)
	}
}

func TestNormalize_ExtraVocabulary(t *testing.T) {
	n := textnorm.New("Snowflake", "  ", "dbt")
	got := n.Normalize("Modelling in dbt on top of snowflake.")
	if !reflect.DeepEqual(got.Skills, []string{"dbt", "snowflake"}) {
		t.Errorf("Skills = %v", got.Skills)
	}
}

// ── Canonical skills ───────────────────────────────────────────────────────

func TestCanonicalSkills(t *testing.T) {
	n := textnorm.New()
	got := n.CanonicalSkills([]string{"Postgres", "PostgreSQL", "k8s", "Figma", "", "  golang "})
	want := []string{"figma", "go", "kubernetes", "postgresql"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CanonicalSkills = %v, want %v", got, want)
	}
}

// ── Phrase containment ─────────────────────────────────────────────────────

func TestContainsPhrase(t *testing.T) {
	cases := []struct {
		text, phrase string
		want         bool
	}{
		{"Remote in Berlin, Germany", "berlin", true},
		{"Remote in Berlin, Germany", "Berlin Germany", true},
		{"Remote in Berlingo", "berlin", false},
		{"anything", "", false},
		{"", "x", false},
	}
	for _, c := range cases {
		if got := textnorm.ContainsPhrase(c.text, c.phrase); got != c.want {
			t.Errorf("ContainsPhrase(%q, %q) = %v, want %v", c.text, c.phrase, got, c.want)
		}
	}
	if !textnorm.ContainsAny("Paris, France", []string{"London", "paris"}) {
		t.Error("ContainsAny should match paris")
	}
	if textnorm.ContainsAny("Paris, France", nil) {
		t.Error("ContainsAny with no phrases should be false")
	}
}

func TestReadVocabulary(t *testing.T) {
	got, err := textnorm.ReadVocabulary(strings.NewReader("# comment\nsnowflake\n\n  dbt  \n"))
	if err != nil {
		t.Fatalf("ReadVocabulary: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"snowflake", "dbt"}) {
		t.Errorf("got %v", got)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
