package watchmode

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"streamwise/models"
)

func TestNormalizeKnownAliases(t *testing.T) {
	cases := map[string]string{
		"Hotstar":     "Disney+",
		"hotstar":     "Disney+",
		"HBO Max":     "Max",
		"Disney Plus": "Disney+",
		"Netflix":     "Netflix", // not an alias, passes through
		"":            "",
	}
	for in, want := range cases {
		if got := NormalizeSourceName(in); got != want {
			t.Errorf("NormalizeSourceName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeSourcesDoesNotMutateInput(t *testing.T) {
	in := []models.Source{{SourceID: 1, Name: "Hotstar", Kind: "sub", URL: "u"}}
	out := NormalizeSources(in)

	if in[0].Name != "Hotstar" {
		t.Fatalf("input slice was mutated: %+v", in[0])
	}
	if out[0].Name != "Disney+" {
		t.Fatalf("expected canonical name, got %+v", out[0])
	}
	if out[0].SourceID != 1 || out[0].Kind != "sub" || out[0].URL != "u" {
		t.Fatalf("normalization must only touch names, got %+v", out[0])
	}
}

// Normalizing an already-normalized list yields the same list.
func TestNormalizeIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("normalization is idempotent", prop.ForAll(
		func(name string) bool {
			once := NormalizeSourceName(name)
			return NormalizeSourceName(once) == once
		},
		gen.AnyString(),
	))

	properties.Property("alias table targets are fixed points", prop.ForAll(
		func(idx int) bool {
			names := make([]string, 0, len(sourceAliases))
			for _, canonical := range sourceAliases {
				names = append(names, canonical)
			}
			canonical := names[idx%len(names)]
			return NormalizeSourceName(canonical) == canonical
		},
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}
