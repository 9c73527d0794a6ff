package flatten

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pair struct {
	Key  string
	Text string
	Kind Kind
}

func pairs(t *testing.T, v Value, delim string) []pair {
	t.Helper()
	var out []pair
	for k, leaf := range Flatten(v, delim) {
		out = append(out, pair{Key: k, Text: leaf.Text(), Kind: leaf.Kind()})
	}
	return out
}

func mustParse(t *testing.T, s string) Value {
	t.Helper()
	v, err := Parse([]byte(s))
	require.NoError(t, err)
	return v
}

// TestFlattenNested checks object keys and array indices join in input order.
func TestFlattenNested(t *testing.T) {
	t.Parallel()

	got := pairs(t, mustParse(t, `{"a": {"b": 1}, "c": [1, 2]}`), ".")
	want := []pair{
		{Key: "a.b", Text: "1", Kind: KindNumber},
		{Key: "c.0", Text: "1", Kind: KindNumber},
		{Key: "c.1", Text: "2", Kind: KindNumber},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Flatten mismatch (-want +got):\n%s", diff)
	}
}

// TestFlattenScalarRoot verifies a bare scalar yields the empty key.
func TestFlattenScalarRoot(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []pair{{Key: "", Text: "x", Kind: KindString}}, pairs(t, String("x"), "."))
	assert.Equal(t, []pair{{Key: "", Text: "42", Kind: KindNumber}}, pairs(t, Int(42), "."))
	assert.Equal(t, []pair{{Key: "", Text: "", Kind: KindNull}}, pairs(t, Null(), "."))
}

func TestFlattenCustomDelimiterAndRootArray(t *testing.T) {
	t.Parallel()

	got := pairs(t, mustParse(t, `{"user": {"profile": {"email": "u@example.com"}}}`), "/")
	assert.Equal(t, []pair{{Key: "user/profile/email", Text: "u@example.com", Kind: KindString}}, got)

	got = pairs(t, mustParse(t, `["Alice", {"n": true}]`), ".")
	assert.Equal(t, []pair{
		{Key: "0", Text: "Alice", Kind: KindString},
		{Key: "1.n", Text: "true", Kind: KindBool},
	}, got)
}

func TestFlattenEmptyContainers(t *testing.T) {
	t.Parallel()

	assert.Empty(t, pairs(t, mustParse(t, `{}`), "."))
	assert.Empty(t, pairs(t, mustParse(t, `{"a": [], "b": {}}`), "."))
}

func TestFlattenStopsEarly(t *testing.T) {
	t.Parallel()

	v := mustParse(t, `{"a": 1, "b": [2, 3], "c": 4}`)
	var keys []string
	for k := range Flatten(v, ".") {
		keys = append(keys, k)
		if len(keys) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b.0"}, keys)
}

func TestCollectAndProject(t *testing.T) {
	t.Parallel()

	row := Collect(mustParse(t, `{"name": "Alice", "age": 30, "tags": ["x"]}`), ".")
	assert.Equal(t, []string{"name", "age", "tags.0"}, row.Keys)
	assert.Equal(t, []string{"Alice", "", "30"}, row.Project([]string{"name", "missing", "age"}))
}

func TestCollectDuplicatePaths(t *testing.T) {
	t.Parallel()

	// "a.b" arises both from a nested object and a literal dotted key.
	row := Collect(mustParse(t, `{"a": {"b": 1}, "a.b": 2}`), ".")
	assert.Equal(t, []string{"a.b"}, row.Keys)
	assert.Equal(t, "2", row.Values["a.b"].Text())
}

func TestDecodeKeepsOrderAndLiterals(t *testing.T) {
	t.Parallel()

	v := mustParse(t, `{"z": 1.50, "a": null, "m": "x & y", "big": 12345678901234567890}`)
	var keys []string
	for _, m := range v.Members() {
		keys = append(keys, m.Key)
	}
	assert.Equal(t, []string{"z", "a", "m", "big"}, keys)

	out, err := v.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"z": 1.50, "a": null, "m": "x & y", "big": 12345678901234567890}`, string(out))
	assert.Equal(t, `{"z":1.50,"a":null,"m":"x & y","big":12345678901234567890}`, string(out))
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{"a": 1} {"b": 2}`))
	require.ErrorIs(t, err, ErrTrailingData)

	_, err = Parse([]byte(`{"a": `))
	require.Error(t, err)

	_, err = Decode(strings.NewReader(""))
	require.Error(t, err)
}

func TestFromAny(t *testing.T) {
	t.Parallel()

	type record struct {
		Country string `json:"country_code"`
		Valid   bool   `json:"valid"`
	}
	v, err := FromAny(record{Country: "DE", Valid: true})
	require.NoError(t, err)
	assert.True(t, v.Equal(Object(Field("country_code", String("DE")), Field("valid", Bool(true)))))

	v, err = FromAny(map[string]any{"b": 2, "a": []any{"x", nil}})
	require.NoError(t, err)
	out, err := v.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x",null],"b":2}`, string(out))

	_, err = FromAny(map[string]any{"f": func() {}})
	require.Error(t, err)
}

func TestValueAccessors(t *testing.T) {
	t.Parallel()

	v := Object(Field("vies", Object(Field("valid", Bool(true)), Field("name", String("ACME")))))
	assert.True(t, v.Lookup("vies", "valid").AsBool())
	assert.Equal(t, "ACME", v.Lookup("vies", "name").Str())
	assert.True(t, v.Lookup("vies", "missing", "deeper").IsNull())

	updated := v.With("extra", Int(1)).With("vies", Null())
	assert.Equal(t, 2, updated.Len())
	assert.Equal(t, "vies", updated.Members()[0].Key)
	assert.True(t, updated.Lookup("vies").IsNull())
	assert.Equal(t, 1, v.Len(), "With does not mutate the receiver")

	f, ok := Float(2.5).Float64()
	require.True(t, ok)
	assert.InDelta(t, 2.5, f, 1e-9)
	assert.Equal(t, `[1,"a"]`, Array(Int(1), String("a")).Text())
}
