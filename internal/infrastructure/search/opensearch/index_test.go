package opensearch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molstruct/pkg/errors"
	"github.com/turtacn/molstruct/pkg/types/common"
	mtypes "github.com/turtacn/molstruct/pkg/types/molecule"
)

func water(id string) *mtypes.MoleculeDTO {
	name := "water"
	created := common.Timestamp(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	return &mtypes.MoleculeDTO{
		ID:        common.ID(id),
		Source:    mtypes.SourceUpload,
		Format:    "xyz",
		Filename:  "water.xyz",
		Engine:    "native",
		CreatedAt: created,
		UpdatedAt: created,
		StructureDTO: mtypes.StructureDTO{
			Name:            &name,
			Formula:         "H2O",
			AtomCount:       3,
			MolecularWeight: 18.015,
			Atoms: []mtypes.AtomDTO{
				{Index: 0, Symbol: "O", AtomicNumber: 8},
				{Index: 1, Symbol: "H", AtomicNumber: 1, X: 0.96},
				{Index: 2, Symbol: "H", AtomicNumber: 1, X: -0.24, Y: 0.93},
			},
			Bonds: []mtypes.BondDTO{{Atom1: 0, Atom2: 1, Order: 1}, {Atom1: 0, Atom2: 2, Order: 1}},
		},
	}
}

func TestMoleculeIndex_Ensure(t *testing.T) {
	f, ix := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.Ensure(ctx))
	var mapping map[string]interface{}
	f.locked(func() { mapping = f.mapping })
	require.NotNil(t, mapping)
	mappings := mapping["mappings"].(map[string]interface{})
	props := mappings["properties"].(map[string]interface{})
	assert.Equal(t, "keyword", props["elements"].(map[string]interface{})["type"])
	assert.Equal(t, "strict", mappings["dynamic"])

	// Second call sees the index and leaves it alone.
	f.locked(func() { f.mapping = nil })
	require.NoError(t, ix.Ensure(ctx))
	f.locked(func() { assert.Nil(t, f.mapping) })
	assert.Equal(t, "molecules", ix.Name())
}

func TestMoleculeIndex_IndexAndRemove(t *testing.T) {
	f, ix := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, ix.Ensure(ctx))

	require.NoError(t, ix.Index(ctx, water("mol-1")))
	var (
		doc     document
		ok      bool
		refresh string
	)
	f.locked(func() { doc, ok = f.docs["mol-1"]; refresh = f.refresh })
	require.True(t, ok)
	assert.Equal(t, "water", doc.Name)
	assert.Equal(t, []string{"H", "O"}, doc.Elements)
	assert.Equal(t, 2, doc.BondCount)
	assert.Equal(t, "upload", doc.Source)
	assert.Equal(t, "wait_for", refresh)

	require.NoError(t, ix.Remove(ctx, "mol-1"))
	f.locked(func() { assert.Empty(t, f.docs) })
	assert.NoError(t, ix.Remove(ctx, "mol-1"), "missing document is not an error")
}

func TestMoleculeIndex_IndexErrors(t *testing.T) {
	f, ix := newTestIndex(t)
	ctx := context.Background()

	err := ix.Index(ctx, &mtypes.MoleculeDTO{})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	f.locked(func() { f.failWrites = true })
	err = ix.Index(ctx, water("mol-1"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeExternalService))
	assert.Contains(t, err.Error(), "mapper_parsing_exception: bad field")

	f.locked(func() { f.failWrites = false })
	f.setDown(true)
	err = ix.Index(ctx, water("mol-1"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}

func TestMoleculeIndex_Search(t *testing.T) {
	f, ix := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, ix.Ensure(ctx))
	require.NoError(t, ix.Index(ctx, water("mol-1")))

	resp, err := ix.Search(ctx, &mtypes.SearchRequest{Query: "water", Elements: []string{"O"}, PageSize: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Total)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 5, resp.PageSize)
	require.Len(t, resp.Items, 1)

	hit := resp.Items[0]
	assert.Equal(t, common.ID("mol-1"), hit.ID)
	assert.Equal(t, "H2O", hit.Formula)
	assert.Equal(t, mtypes.SourceUpload, hit.Source)
	assert.Equal(t, 1.5, hit.Score)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), time.Time(hit.CreatedAt).UTC())
	assert.Equal(t, map[string]int64{"H": 1, "O": 1}, resp.ElementFacets)

	f.locked(func() {
		require.NotNil(t, f.lastSearch)
		assert.EqualValues(t, 5, f.lastSearch["size"])
	})
}

func TestMoleculeIndex_SearchBackendError(t *testing.T) {
	f, ix := newTestIndex(t)
	f.setDown(true)

	_, err := ix.Search(context.Background(), &mtypes.SearchRequest{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}

func TestElementsOf(t *testing.T) {
	atoms := []mtypes.AtomDTO{{Symbol: "C"}, {Symbol: "O"}, {Symbol: "C"}, {Symbol: "Cl"}, {Symbol: "H"}}
	assert.Equal(t, []string{"C", "Cl", "H", "O"}, elementsOf(atoms))
	assert.Empty(t, elementsOf(nil))
}

//Personal.AI order the ending
