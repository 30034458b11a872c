package jdi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/jdwp/internal/jdwp"
)

func methodNamed(t *testing.T, rt ReferenceType, name string) *Method {
	t.Helper()
	methods, err := rt.Methods(context.Background())
	require.NoError(t, err)
	for _, m := range methods {
		if m.Name() == name {
			return m
		}
	}
	t.Fatalf("no method %s in %s", name, rt)
	return nil
}

func TestLineTableLookup(t *testing.T) {
	ctx := context.Background()
	f, vm := newFakeVM(t, hierarchy)
	run := methodNamed(t, classC(t, vm), "run")

	loc, err := run.LocationOfCodeIndex(ctx, 6)
	require.NoError(t, err)
	line, err := loc.LineNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 11, line)

	loc, err = run.LocationOfCodeIndex(ctx, 0)
	require.NoError(t, err)
	line, err = loc.LineNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, line)

	_, err = run.LocationOfCodeIndex(ctx, 21)
	assert.ErrorIs(t, err, ErrInvalidIndex)

	locs, err := run.LocationsOfLine(ctx, 11)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, uint64(5), locs[0].CodeIndex())

	all, err := run.AllLineLocations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uint64{0, 5, 9}, []uint64{all[0].CodeIndex(), all[1].CodeIndex(), all[2].CodeIndex()})

	first, err := run.Location(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), first.CodeIndex())

	assert.Equal(t, 1, f.Count(jdwp.CmdMLineTable), "line table is fetched once")
}

func TestLocationEquality(t *testing.T) {
	ctx := context.Background()
	_, vm := newFakeVM(t, hierarchy)
	run := methodNamed(t, classC(t, vm), "run")

	a, err := run.LocationOfCodeIndex(ctx, 5)
	require.NoError(t, err)
	b := vm.location(jdwp.Location{TypeTag: jdwp.TypeTagClass, Class: 21, Method: 210, Index: 5})
	assert.Equal(t, a, b)
	assert.True(t, a == b)

	m, err := b.Method(ctx)
	require.NoError(t, err)
	assert.Same(t, run, m)
}

func TestNativeMethodHasNoLines(t *testing.T) {
	ctx := context.Background()
	f, vm := newFakeVM(t, hierarchy)
	nat := methodNamed(t, classC(t, vm), "nat")

	f.ResetCounts()
	line, err := nat.location(0).LineNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, -1, line)

	_, err = nat.AllLineLocations(ctx)
	assert.ErrorIs(t, err, ErrAbsentInformation)
	_, err = nat.LocationsOfLine(ctx, 1)
	assert.ErrorIs(t, err, ErrAbsentInformation)
	_, err = nat.Variables(ctx)
	assert.ErrorIs(t, err, ErrAbsentInformation)
	assert.Zero(t, f.Total())
}

func TestAbsentLineInformation(t *testing.T) {
	ctx := context.Background()
	_, vm := newFakeVM(t, hierarchy)
	b := classC(t, vm)
	sup, err := b.Superclass(ctx)
	require.NoError(t, err)

	run := methodNamed(t, sup, "run")
	_, err = run.AllLineLocations(ctx)
	assert.ErrorIs(t, err, ErrAbsentInformation)

	line, err := run.location(3).LineNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, -1, line)

	_, err = sup.AllLineLocations(ctx)
	assert.ErrorIs(t, err, ErrAbsentInformation, "no method of B has line information")

	locs, err := b.AllLineLocations(ctx)
	require.NoError(t, err, "methods without tables are skipped")
	assert.Len(t, locs, 3)
}

func TestLocationsOfLineFallsBackToSuperclass(t *testing.T) {
	ctx := context.Background()
	_, vm := newFakeVM(t, func(f *fakeJVM) {
		hierarchy(f)
		f.add(&fakeClass{id: 22, sig: "Lp/D;", super: 21, methods: []fakeMethod{
			{id: 220, name: "go", sig: "()V", end: 4, lines: []fakeLine{{0, 40}}},
		}})
	})
	types, err := vm.ClassesByName(ctx, "p.D")
	require.NoError(t, err)
	d := types[0].(*ClassType)

	locs, err := d.LocationsOfLine(ctx, 12)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, jdwp.MethodID(210), locs[0].MethodID())

	locs, err = d.LocationsOfLine(ctx, 40)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, jdwp.MethodID(220), locs[0].MethodID())
}

func TestObsoleteMethodLineIsUnknown(t *testing.T) {
	ctx := context.Background()
	_, vm := newFakeVM(t, hierarchy)
	classC(t, vm)

	loc := vm.location(jdwp.Location{TypeTag: jdwp.TypeTagClass, Class: 21, Method: 999, Index: 2})
	_, err := loc.Method(ctx)
	assert.ErrorIs(t, err, ErrInvalidReference)

	line, err := loc.LineNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, -1, line)
}

func TestVariablesAndArguments(t *testing.T) {
	ctx := context.Background()
	_, vm := newFakeVM(t, func(f *fakeJVM) {
		f.add(&fakeClass{id: 30, sig: "Lp/V;", super: 0, methods: []fakeMethod{
			{id: 300, name: "sum", sig: "(II)I", end: 10, lines: []fakeLine{{0, 1}}, args: 3, vars: []fakeVar{
				{start: 0, length: 10, name: "this", sig: "Lp/V;", slot: 0},
				{start: 0, length: 10, name: "b", sig: "I", slot: 2},
				{start: 0, length: 10, name: "a", sig: "I", slot: 1},
				{start: 4, length: 6, name: "tmp", sig: "I", slot: 3},
			}},
		}})
	})
	types, err := vm.ClassesByName(ctx, "p.V")
	require.NoError(t, err)
	sum := methodNamed(t, types[0], "sum")

	args, err := sum.Arguments(ctx)
	require.NoError(t, err)
	require.Len(t, args, 2)
	assert.Equal(t, "a", args[0].Name())
	assert.Equal(t, "b", args[1].Name())
	assert.True(t, args[0].IsArgument())

	tmp, err := sum.VariablesByName(ctx, "tmp")
	require.NoError(t, err)
	require.Len(t, tmp, 1)
	assert.False(t, tmp[0].IsArgument())
	assert.False(t, tmp[0].IsVisible(3))
	assert.True(t, tmp[0].IsVisible(4))
	assert.False(t, tmp[0].IsVisible(10))

	names, err := sum.ArgumentTypeNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"int", "int"}, names)
}
