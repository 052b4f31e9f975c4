package linkage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/bioleads/internal/model"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Dr. John Doe", "john doe"},
		{"Prof. Jane Smith PhD", "jane smith"},
		{"John   Doe", "john doe"},
		{"Robert Brown Jr.", "robert brown"},
		{"William Gates III", "william gates"},
		{"  MARY   major  ", "mary major"},
		{"Andrew Drake", "andrew drake"},
		{"Dr.", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "", NormalizeEmail(nil))
	assert.Equal(t, "", NormalizeEmail(model.String("   ")))
	assert.Equal(t, "jdoe@example.com", NormalizeEmail(model.String("  JDoe@Example.COM ")))
}

func TestNormalizeORCID(t *testing.T) {
	tests := []struct {
		name string
		in   *string
		want string
	}{
		{"nil", nil, ""},
		{"bare", model.String("0000-0001-2345-6789"), "0000-0001-2345-6789"},
		{"https", model.String("https://orcid.org/0000-0001-2345-6789"), "0000-0001-2345-6789"},
		{"http www", model.String("http://www.orcid.org/0000-0001-2345-6789"), "0000-0001-2345-6789"},
		{"no scheme", model.String("orcid.org/0000-0001-2345-678x"), "0000-0001-2345-678X"},
		{"padded", model.String("  0000-0001-2345-6789 "), "0000-0001-2345-6789"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeORCID(tt.in))
		})
	}
}

func TestLevenshteinRatio(t *testing.T) {
	r := NewLevenshteinRatio()

	assert.Equal(t, 100, r.Ratio("john doe", "john doe"))
	assert.Equal(t, 0, r.Ratio("", "john doe"))
	assert.Equal(t, 0, r.Ratio("abc", "xyz"))

	near := r.Ratio("harvard university", "harvard univ.")
	far := r.Ratio("harvard university", "pfizer")
	assert.GreaterOrEqual(t, near, DefaultInstitutionThreshold)
	assert.Less(t, far, DefaultInstitutionThreshold)
	assert.Equal(t, near, r.Ratio("harvard univ.", "harvard university"))
}

func TestDisjointSet(t *testing.T) {
	s := newDisjointSet(6)

	assert.True(t, s.union(4, 2))
	assert.True(t, s.union(2, 5))
	assert.False(t, s.union(5, 4))
	assert.True(t, s.union(3, 1))

	assert.True(t, s.same(2, 5))
	assert.False(t, s.same(0, 1))
	assert.Equal(t, 2, s.find(4))
	assert.Equal(t, 1, s.find(3))

	assert.Equal(t, [][]int{{0}, {1, 3}, {2, 4, 5}}, s.groups())
}
