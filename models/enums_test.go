package models

import (
	"encoding/json"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCollectionStatusRoundTrip(t *testing.T) {
	for _, s := range AllCollectionStatuses {
		got, err := ParseCollectionStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseCollectionStatus("conteo")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestParseProvisionStatusRejectsCollectionVocabulary(t *testing.T) {
	for _, s := range AllProvisionStatuses {
		got, err := ParseProvisionStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseProvisionStatus(string(CollectionConteo))
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestEveryIncidentCategoryHasSign(t *testing.T) {
	want := map[IncidentCategory]int{
		IncidentShortage:               1,
		IncidentMixedShortage:          1,
		IncidentFake:                   1,
		IncidentOverage:                -1,
		IncidentMixedOverage:           -1,
		IncidentDamaged:                0,
		IncidentCountingError:          0,
		IncidentContainerInconsistency: 0,
		IncidentOther:                  0,
	}
	require.Len(t, AllIncidentCategories, len(want))
	for _, c := range AllIncidentCategories {
		sign, err := c.Sign()
		require.NoError(t, err, c)
		assert.Equal(t, want[c], sign, c)
	}

	_, err := IncidentCategory("Theft").Sign()
	assert.ErrorIs(t, err, ErrUnknownCategory)
	_, err = ParseIncidentCategory("Theft")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

// declaredIncidentCategories returns the values of every IncidentCategory
// constant declared in enums.go.
func declaredIncidentCategories(t *testing.T) []IncidentCategory {
	t.Helper()
	file, err := parser.ParseFile(token.NewFileSet(), "enums.go", nil, 0)
	require.NoError(t, err)

	var declared []IncidentCategory
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.CONST {
			continue
		}
		for _, spec := range gen.Specs {
			vs := spec.(*ast.ValueSpec)
			ident, ok := vs.Type.(*ast.Ident)
			if !ok || ident.Name != "IncidentCategory" {
				continue
			}
			for _, v := range vs.Values {
				lit, ok := v.(*ast.BasicLit)
				require.True(t, ok, "IncidentCategory constants must be string literals")
				value, err := strconv.Unquote(lit.Value)
				require.NoError(t, err)
				declared = append(declared, IncidentCategory(value))
			}
		}
	}
	return declared
}

func TestAllIncidentCategoriesListsEveryConstant(t *testing.T) {
	declared := declaredIncidentCategories(t)
	require.NotEmpty(t, declared)
	assert.ElementsMatch(t, declared, AllIncidentCategories)
	for _, c := range declared {
		_, err := c.Sign()
		assert.NoError(t, err, "category %s has no sign", c)
	}
}

func TestEnumUnmarshalJSON(t *testing.T) {
	var payload struct {
		Workflow WorkflowKind     `json:"workflow"`
		Status   CollectionStatus `json:"status"`
		Category IncidentCategory `json:"category"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"workflow":"Provision","status":"Conteo","category":"Fake"}`), &payload))
	assert.Equal(t, WorkflowProvision, payload.Workflow)
	assert.Equal(t, CollectionConteo, payload.Status)
	assert.Equal(t, IncidentFake, payload.Category)

	assert.Error(t, json.Unmarshal([]byte(`{"status":"Counting"}`), &payload))
	assert.Error(t, json.Unmarshal([]byte(`{"workflow":3}`), &payload))
}

func TestIncidentStatusIsPending(t *testing.T) {
	assert.True(t, IncidentStatusReported.IsPending())
	assert.True(t, IncidentStatusAdjusted.IsPending())
	assert.False(t, IncidentStatusApproved.IsPending())
	assert.False(t, IncidentStatusRejected.IsPending())
}

func TestServiceProgressIsTerminal(t *testing.T) {
	terminal := map[ServiceProgress]bool{
		ServiceProgressRejected:  true,
		ServiceProgressCompleted: true,
		ServiceProgressCancelled: true,
	}
	for _, p := range []ServiceProgress{0, 1, 2, 4, 5, 6} {
		assert.Equal(t, terminal[p], p.IsTerminal(), "progress %d", p)
	}
}
