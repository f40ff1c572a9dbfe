package neo4j

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molstruct/internal/domain/molecule"
	"github.com/turtacn/molstruct/pkg/errors"
	"github.com/turtacn/molstruct/pkg/types/common"
)

func smilesMolecule(t *testing.T, smiles string, created time.Time) *molecule.Molecule {
	t.Helper()
	m, err := molecule.NewSMILESMolecule(smiles, "", false)
	require.NoError(t, err)
	m.CreatedAt = created
	m.UpdatedAt = created
	return m
}

func TestMoleculeGraph_SaveAndFind(t *testing.T) {
	g, fg := newTestGraph()
	ctx := context.Background()

	m := smilesMolecule(t, "CCO", time.Now().UTC())
	require.NoError(t, g.Save(ctx, m))

	var stored *node
	fg.locked(func() { stored = fg.nodes[m.ID.String()] })
	require.NotNil(t, stored)
	assert.Len(t, stored.atoms, len(m.Structure.Atoms))
	assert.Len(t, stored.bonds, len(m.Structure.Bonds))
	assert.Equal(t, "O", stored.atoms[2]["symbol"])

	got, err := g.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, m.Version, got.Version)
	assert.Equal(t, m.Structure.Formula, got.Structure.Formula)
	assert.Equal(t, m.Structure.Atoms, got.Structure.Atoms)
	assert.Equal(t, m.Structure.Bonds, got.Structure.Bonds)
	assert.True(t, m.CreatedAt.Equal(got.CreatedAt))
}

func TestMoleculeGraph_SaveRewritesSubgraph(t *testing.T) {
	g, fg := newTestGraph()
	ctx := context.Background()

	m := smilesMolecule(t, "CCC", time.Now().UTC())
	require.NoError(t, g.Save(ctx, m))
	require.NoError(t, m.RegenerateGeometry(true))
	require.NoError(t, g.Save(ctx, m))

	var statements []string
	fg.locked(func() {
		for _, c := range fg.calls {
			statements = append(statements, c.cypher)
		}
	})
	write := []string{cypherUpsertMolecule, cypherClearAtoms, cypherCreateAtoms, cypherCreateBonds}
	assert.Equal(t, append(write, write...), statements)

	got, err := g.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.Version, got.Version)
	assert.True(t, got.Minimized)
}

func TestMoleculeGraph_FindMissing(t *testing.T) {
	g, _ := newTestGraph()
	_, err := g.FindByID(context.Background(), common.NewID())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeNotFound))
}

func TestMoleculeGraph_ListNewestFirst(t *testing.T) {
	g, _ := newTestGraph()
	ctx := context.Background()
	base := time.Now().UTC()

	var ids []common.ID
	for i, s := range []string{"C", "CC", "CCC"} {
		m := smilesMolecule(t, s, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, g.Save(ctx, m))
		ids = append(ids, m.ID)
	}

	page, total, err := g.List(ctx, 0, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)

	page, _, err = g.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)

	page, total, err = g.List(ctx, 5, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.EqualValues(t, 3, total)
}

func TestMoleculeGraph_Delete(t *testing.T) {
	g, _ := newTestGraph()
	ctx := context.Background()

	m := smilesMolecule(t, "CO", time.Now().UTC())
	require.NoError(t, g.Save(ctx, m))
	require.NoError(t, g.Delete(ctx, m.ID))

	err := g.Delete(ctx, m.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeNotFound))
	_, err = g.FindByID(ctx, m.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeNotFound))
}

func TestMoleculeGraph_BackendErrors(t *testing.T) {
	g, fg := newTestGraph()
	ctx := context.Background()
	m := smilesMolecule(t, "CC", time.Now().UTC())

	fg.locked(func() { fg.failRun = cypherCreateBonds })
	err := g.Save(ctx, m)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))

	fg.locked(func() { fg.failRun = ""; fg.down = true })
	_, err = g.FindByID(ctx, m.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))
	_, _, err = g.List(ctx, 0, 10)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))
	assert.True(t, errors.IsCode(g.Delete(ctx, m.ID), errors.ErrCodeDatabaseError))
}

func TestMoleculeGraph_CorruptDocument(t *testing.T) {
	g, fg := newTestGraph()
	id := common.NewID()
	fg.locked(func() { fg.nodes[id.String()] = &node{document: "{not json"} })

	_, err := g.FindByID(context.Background(), id)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSerialization))
}

func TestMoleculeGraph_EnsureSchema(t *testing.T) {
	g, fg := newTestGraph()
	require.NoError(t, g.EnsureSchema(context.Background()))

	var got []string
	fg.locked(func() {
		for _, c := range fg.calls {
			got = append(got, c.cypher)
		}
	})
	assert.Equal(t, schemaStatements, got)
}

//Personal.AI order the ending
