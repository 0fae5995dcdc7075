package querysql

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/apagea/internal/query"
)

func mustParse(t *testing.T, raw map[string]any) query.Expr {
	t.Helper()
	expr, err := query.Parse(raw, query.Limits{})
	require.NoError(t, err)
	return expr
}

var paramRef = regexp.MustCompile(`:([A-Za-z0-9_]+)`)

// referencedParams extracts every :name placeholder from predicate text.
func referencedParams(text string) []string {
	var names []string
	for _, m := range paramRef.FindAllStringSubmatch(text, -1) {
		names = append(names, m[1])
	}
	return names
}

func TestCompileSimpleEquality(t *testing.T) {
	c := NewCompiler(ModeExtract)
	pred, err := c.Compile(mustParse(t, map[string]any{"name": "John"}))
	require.NoError(t, err)

	assert.Equal(t, "json_extract(data, '$.name') = :q_name_eq_1", pred.Text)
	assert.Equal(t, map[string]any{"q_name_eq_1": "John"}, pred.Params)
}

func TestCompileComparisonOperators(t *testing.T) {
	cases := map[string]struct {
		tag   string
		sqlOp string
	}{
		"eq":  {"eq", "="},
		"gt":  {"gt", ">"},
		"gte": {"gte", ">="},
		"lt":  {"lt", "<"},
		"lte": {"lte", "<="},
	}
	c := NewCompiler(ModeExtract)
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			expr := mustParse(t, map[string]any{"age": map[string]any{tc.tag: 21}})
			pred, err := c.Compile(expr)
			require.NoError(t, err)

			want := fmt.Sprintf("json_extract(data, '$.age') %s :q_age_%s_1", tc.sqlOp, tc.tag)
			assert.Equal(t, want, pred.Text)
			assert.Equal(t, map[string]any{fmt.Sprintf("q_age_%s_1", tc.tag): 21}, pred.Params)
		})
	}
}

func TestCompileLikeFamilyWrapsOperand(t *testing.T) {
	cases := map[string]struct {
		tag  string
		want string
	}{
		"sw":       {"sw", "Jo%"},
		"ew":       {"ew", "%hn"},
		"contains": {"contains", "%oh%"},
	}
	c := NewCompiler(ModeExtract)
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			operand := strings.Trim(tc.want, "%")
			expr := mustParse(t, map[string]any{"name": map[string]any{tc.tag: operand}})
			pred, err := c.Compile(expr)
			require.NoError(t, err)

			param := fmt.Sprintf("q_name_%s_1", tc.tag)
			assert.Equal(t, fmt.Sprintf("json_extract(data, '$.name') LIKE :%s", param), pred.Text)
			assert.Equal(t, tc.want, pred.Params[param])
		})
	}
}

func TestCompileCaseInsensitiveLike(t *testing.T) {
	c := NewCompiler(ModeExtract)

	pred, err := c.Compile(mustParse(t, map[string]any{"name": map[string]any{"swci": "jo"}}))
	require.NoError(t, err)
	assert.Equal(t, "LOWER(json_extract(data, '$.name')) LIKE LOWER(:q_name_swci_1)", pred.Text)
	assert.Equal(t, "jo%", pred.Params["q_name_swci_1"])

	pred, err = c.Compile(mustParse(t, map[string]any{"name": map[string]any{"ewci": "HN"}}))
	require.NoError(t, err)
	assert.Equal(t, "LOWER(json_extract(data, '$.name')) LIKE LOWER(:q_name_ewci_1)", pred.Text)
	assert.Equal(t, "%HN", pred.Params["q_name_ewci_1"])
}

func TestCompileInBindsOneParamPerElement(t *testing.T) {
	c := NewCompiler(ModeExtract)
	expr := mustParse(t, map[string]any{"city": map[string]any{"in": []any{"NYC", "LA", "SF"}}})
	pred, err := c.Compile(expr)
	require.NoError(t, err)

	assert.Equal(t,
		"json_extract(data, '$.city') IN (:q_city_in_1_0, :q_city_in_1_1, :q_city_in_1_2)",
		pred.Text)
	assert.Equal(t, map[string]any{
		"q_city_in_1_0": "NYC",
		"q_city_in_1_1": "LA",
		"q_city_in_1_2": "SF",
	}, pred.Params)
}

func TestCompileEmptyInMatchesNoRows(t *testing.T) {
	c := NewCompiler(ModeExtract)
	pred, err := c.Compile(mustParse(t, map[string]any{"city": map[string]any{"in": []any{}}}))
	require.NoError(t, err)

	assert.Equal(t, "1 = 0", pred.Text)
	assert.Empty(t, pred.Params)
}

func TestCompileNestedCombinators(t *testing.T) {
	raw := map[string]any{
		"AND": []any{
			map[string]any{"age": map[string]any{"gt": 21}},
			map[string]any{
				"OR": []any{
					map[string]any{"sex": "M"},
					map[string]any{"city": "NYC"},
				},
			},
		},
	}
	c := NewCompiler(ModeExtract)
	pred, err := c.Compile(mustParse(t, raw))
	require.NoError(t, err)

	want := "(json_extract(data, '$.age') > :q_age_gt_1) AND " +
		"((json_extract(data, '$.sex') = :q_sex_eq_2) OR " +
		"(json_extract(data, '$.city') = :q_city_eq_3))"
	assert.Equal(t, want, pred.Text)
	assert.Len(t, pred.Params, 3)
}

func TestCompileRepeatedFieldOperatorPairsDoNotCollide(t *testing.T) {
	raw := map[string]any{
		"AND": []any{
			map[string]any{"age": map[string]any{"gt": 10}},
			map[string]any{"age": map[string]any{"gt": 20}},
		},
	}
	c := NewCompiler(ModeExtract)
	pred, err := c.Compile(mustParse(t, raw))
	require.NoError(t, err)

	require.Len(t, pred.Params, 2)
	assert.Equal(t, 10, pred.Params["q_age_gt_1"])
	assert.Equal(t, 20, pred.Params["q_age_gt_2"])
}

func TestCompileEveryReferencedParamIsBound(t *testing.T) {
	raw := map[string]any{
		"OR": []any{
			map[string]any{"name": map[string]any{"swci": "jo", "in": []any{"a", "b"}}},
			map[string]any{"age": map[string]any{"gte": 18, "lt": 65}},
		},
	}
	c := NewCompiler(ModeExtract)
	pred, err := c.Compile(mustParse(t, raw))
	require.NoError(t, err)

	refs := referencedParams(pred.Text)
	require.NotEmpty(t, refs)
	for _, name := range refs {
		assert.Contains(t, pred.Params, name)
		assert.True(t, strings.HasPrefix(name, "q_"), "param %s lacks q_ prefix", name)
	}
	assert.Len(t, pred.Params, len(refs))
}

func TestCompileOperandValuesNeverAppearInText(t *testing.T) {
	hostile := `x'); DROP TABLE col_users; --`
	c := NewCompiler(ModeExtract)
	pred, err := c.Compile(mustParse(t, map[string]any{"name": hostile}))
	require.NoError(t, err)

	assert.NotContains(t, pred.Text, "DROP TABLE")
	assert.Equal(t, hostile, pred.Params["q_name_eq_1"])
}

func TestCompileRejectsHostileFieldPaths(t *testing.T) {
	paths := []string{
		"name') --",
		"a;b",
		"a..b",
		"a b",
		"a-b",
		"",
	}
	c := NewCompiler(ModeExtract)
	for _, path := range paths {
		expr := query.Fields{{Path: path, Conds: []query.Cond{{Op: query.OpEq, Value: 1}}}}
		_, err := c.Compile(expr)
		assert.Error(t, err, "path %q", path)
		assert.True(t, query.IsValidation(err), "path %q", path)
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	raw := map[string]any{
		"AND": []any{
			map[string]any{"b": 2, "a": 1},
			map[string]any{"c": map[string]any{"in": []any{1, 2}, "gt": 0}},
		},
	}
	c := NewCompiler(ModeExtract)

	expr := mustParse(t, raw)
	first, err := c.Compile(expr)
	require.NoError(t, err)
	second, err := c.Compile(expr)
	require.NoError(t, err)

	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, first.Params, second.Params)
}

func TestCompileUnknownOperator(t *testing.T) {
	expr := query.Fields{{Path: "name", Conds: []query.Cond{{Op: "regex", Value: ".*"}}}}
	_, err := NewCompiler(ModeExtract).Compile(expr)
	require.Error(t, err)
	assert.True(t, query.IsInvalidOperator(err))

	var opErr *query.InvalidOperatorError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "name", opErr.Field)
	assert.Equal(t, "regex", opErr.Op)
}

func TestCompileFlattenedMode(t *testing.T) {
	c := NewCompiler(ModeFlattened)
	expr := mustParse(t, map[string]any{"address.city": "LA"})
	pred, err := c.Compile(expr)
	require.NoError(t, err)

	assert.Equal(t, `"address_city" = :q_address_city_eq_1`, pred.Text)
	assert.Equal(t, "LA", pred.Params["q_address_city_eq_1"])
}

func TestCompileNestedPathExtract(t *testing.T) {
	c := NewCompiler(ModeExtract)
	pred, err := c.Compile(mustParse(t, map[string]any{"address.geo.lat": map[string]any{"gte": 40}}))
	require.NoError(t, err)

	assert.Equal(t,
		"json_extract(data, '$.address.geo.lat') >= :q_address_geo_lat_gte_1",
		pred.Text)
}

func TestCompileCustomColumn(t *testing.T) {
	c := &Compiler{Mode: ModeExtract, Column: "body"}
	pred, err := c.Compile(mustParse(t, map[string]any{"name": "x"}))
	require.NoError(t, err)
	assert.Equal(t, "json_extract(body, '$.name') = :q_name_eq_1", pred.Text)

	bad := &Compiler{Mode: ModeExtract, Column: `data"; --`}
	_, err = bad.Compile(mustParse(t, map[string]any{"name": "x"}))
	assert.Error(t, err)
}

func TestCompileHonorsLimits(t *testing.T) {
	c := &Compiler{Mode: ModeExtract, Limits: query.Limits{MaxDepth: 2, MaxBreadth: 8}}

	shallow := mustParse(t, map[string]any{"AND": []any{map[string]any{"a": 1}}})
	_, err := c.Compile(shallow)
	assert.NoError(t, err)

	deep := mustParse(t, map[string]any{
		"AND": []any{map[string]any{
			"OR": []any{map[string]any{
				"AND": []any{map[string]any{"a": 1}},
			}},
		}},
	})
	_, err = c.Compile(deep)
	require.Error(t, err)
	assert.True(t, query.IsValidation(err))
}

func TestCompileGolden(t *testing.T) {
	cases := map[string]struct {
		mode Mode
		raw  map[string]any
	}{
		"simple_eq": {ModeExtract, map[string]any{"name": "John"}},
		"like_family": {ModeExtract, map[string]any{
			"name": map[string]any{"contains": "oh", "ew": "n", "sw": "J"},
		}},
		"nested_combinators": {ModeExtract, map[string]any{
			"AND": []any{
				map[string]any{"age": map[string]any{"gt": 21}},
				map[string]any{
					"OR": []any{
						map[string]any{"sex": "M"},
						map[string]any{"city": "NYC"},
					},
				},
			},
		}},
		"in_list": {ModeExtract, map[string]any{
			"city": map[string]any{"in": []any{"NYC", "LA"}},
		}},
		"empty_in": {ModeExtract, map[string]any{
			"city": map[string]any{"in": []any{}},
		}},
		"flattened": {ModeFlattened, map[string]any{
			"address.city": map[string]any{"swci": "sp"},
		}},
	}

	g := goldie.New(t)
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			pred, err := NewCompiler(tc.mode).Compile(mustParse(t, tc.raw))
			require.NoError(t, err)
			g.Assert(t, name, []byte(renderPredicate(pred)))
		})
	}
}

// renderPredicate serializes a compiled predicate with sorted
// parameters for stable golden comparison.
func renderPredicate(pred CompiledPredicate) string {
	names := make([]string, 0, len(pred.Params))
	for name := range pred.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(pred.Text)
	b.WriteString("\n")
	for _, name := range names {
		fmt.Fprintf(&b, "%s = %v\n", name, pred.Params[name])
	}
	return b.String()
}
