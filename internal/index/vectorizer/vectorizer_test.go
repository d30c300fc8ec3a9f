package vectorizer

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func TestBuildVocabulary(t *testing.T) {
	docs := [][]string{
		{"apple", "banana", "apple"},
		{"banana", "cherry"},
	}
	v := BuildVocabulary(docs)

	if v.Size() != 3 {
		t.Fatalf("Size = %d, want 3", v.Size())
	}
	if v.DocCount() != 2 {
		t.Fatalf("DocCount = %d, want 2", v.DocCount())
	}

	// Indices are assigned in sorted term order.
	wantOrder := []string{"apple", "banana", "cherry"}
	for i, term := range wantOrder {
		if got := v.Term(i); got != term {
			t.Errorf("Term(%d) = %q, want %q", i, got, term)
		}
		idx, ok := v.Lookup(term)
		if !ok || idx != i {
			t.Errorf("Lookup(%q) = (%d, %v), want (%d, true)", term, idx, ok, i)
		}
	}

	// Document frequency counts distinct documents, not occurrences.
	wantDF := map[string]int{"apple": 1, "banana": 2, "cherry": 1}
	for term, df := range wantDF {
		i, _ := v.Lookup(term)
		if got := v.DocFreq(i); got != df {
			t.Errorf("DocFreq(%q) = %d, want %d", term, got, df)
		}
	}
}

func TestIDF(t *testing.T) {
	v := BuildVocabulary([][]string{
		{"common", "rare"},
		{"common"},
		{"common"},
	})

	commonIdx, _ := v.Lookup("common")
	rareIdx, _ := v.Lookup("rare")

	// idf = ln(N/df) + 1
	wantCommon := math.Log(3.0/3.0) + 1
	wantRare := math.Log(3.0/1.0) + 1
	if got := v.IDF(commonIdx); math.Abs(got-wantCommon) > epsilon {
		t.Errorf("IDF(common) = %f, want %f", got, wantCommon)
	}
	if got := v.IDF(rareIdx); math.Abs(got-wantRare) > epsilon {
		t.Errorf("IDF(rare) = %f, want %f", got, wantRare)
	}
	if v.IDF(rareIdx) <= v.IDF(commonIdx) {
		t.Error("rare term should have strictly higher IDF than ubiquitous term")
	}
}

func TestVectorizeL2Norm(t *testing.T) {
	v := BuildVocabulary([][]string{
		{"payment", "rejected", "negative", "quantity"},
		{"missing", "required", "field", "payment"},
		{"timeout", "while", "calling", "payment", "gateway"},
	})
	vz := New(v)

	inputs := [][]string{
		{"payment", "rejected"},
		{"negative", "quantity", "negative"},
		{"payment"},
		{"missing", "required", "field", "payment", "gateway"},
	}
	for _, tokens := range inputs {
		vec := vz.Vectorize(tokens)
		if len(vec) == 0 {
			t.Fatalf("Vectorize(%v) returned empty vector", tokens)
		}
		var sumSquares float64
		for _, w := range vec {
			sumSquares += w * w
		}
		if norm := math.Sqrt(sumSquares); math.Abs(norm-1.0) > epsilon {
			t.Errorf("Vectorize(%v): L2 norm = %f, want 1.0", tokens, norm)
		}
	}
}

func TestVectorizeOutOfVocabulary(t *testing.T) {
	v := BuildVocabulary([][]string{{"alpha", "beta"}})
	vz := New(v)

	// Fully out-of-vocabulary input yields an empty vector, not an error.
	if vec := vz.Vectorize([]string{"zzz", "yyy"}); len(vec) != 0 {
		t.Errorf("fully OOV input: got %d entries, want 0", len(vec))
	}
	if vec := vz.Vectorize(nil); len(vec) != 0 {
		t.Errorf("nil input: got %d entries, want 0", len(vec))
	}

	// Unknown tokens are dropped, known ones survive.
	vec := vz.Vectorize([]string{"alpha", "zzz"})
	if len(vec) != 1 {
		t.Fatalf("mixed input: got %d entries, want 1", len(vec))
	}
	alphaIdx, _ := v.Lookup("alpha")
	if _, ok := vec[alphaIdx]; !ok {
		t.Error("mixed input: alpha weight missing")
	}
}

func TestVectorizeDeterministic(t *testing.T) {
	docs := [][]string{
		{"negative", "value", "quantity"},
		{"missing", "required", "field"},
	}
	tokens := []string{"quantity", "negative", "field"}

	a := New(BuildVocabulary(docs)).Vectorize(tokens)
	b := New(BuildVocabulary(docs)).Vectorize(tokens)
	if len(a) != len(b) {
		t.Fatalf("vector sizes differ: %d vs %d", len(a), len(b))
	}
	for i, w := range a {
		if math.Abs(w-b[i]) > epsilon {
			t.Errorf("weight at index %d differs: %f vs %f", i, w, b[i])
		}
	}
}

func TestCosine(t *testing.T) {
	v := BuildVocabulary([][]string{
		{"alpha", "beta"},
		{"gamma", "delta"},
	})
	vz := New(v)

	a := vz.Vectorize([]string{"alpha", "beta"})
	b := vz.Vectorize([]string{"gamma", "delta"})

	if got := Cosine(a, a); math.Abs(got-1.0) > epsilon {
		t.Errorf("Cosine(a, a) = %f, want 1.0", got)
	}
	if got := Cosine(a, b); got != 0 {
		t.Errorf("Cosine(disjoint) = %f, want 0", got)
	}
	if got := Cosine(a, Vector{}); got != 0 {
		t.Errorf("Cosine(a, empty) = %f, want 0", got)
	}

	// Partial overlap lands strictly between 0 and 1.
	c := vz.Vectorize([]string{"alpha", "gamma"})
	if got := Cosine(a, c); got <= 0 || got >= 1 {
		t.Errorf("Cosine(partial overlap) = %f, want in (0,1)", got)
	}
}
