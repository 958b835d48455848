package snapshot

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astroseed/gosph/internal/geometry"
	"github.com/astroseed/gosph/internal/mathx"
	"github.com/astroseed/gosph/internal/quantity"
	"github.com/astroseed/gosph/internal/stats"
	"github.com/astroseed/gosph/internal/storage"
)

func sampleStore(t *testing.T, n int) *storage.Storage {
	t.Helper()
	s := storage.New()
	positions := make([]geometry.Vector, n)
	masses := make([]float64, n)
	for i := range positions {
		positions[i] = geometry.Vector{float64(i), float64(2 * i), -float64(i), 0.25}
		masses[i] = 1.5 + float64(i)
	}
	_, err := storage.InsertValues(s, quantity.Position, quantity.OrderSecond, positions)
	require.NoError(t, err)
	_, err = storage.InsertValues(s, quantity.Mass, quantity.OrderFirst, masses)
	require.NoError(t, err)

	v, err := storage.Dt[geometry.Vector](s, quantity.Position)
	require.NoError(t, err)
	dv, err := storage.D2t[geometry.Vector](s, quantity.Position)
	require.NoError(t, err)
	for i := range v {
		v[i] = geometry.Vector{0.5, float64(i), 0, 0}
		dv[i] = geometry.Vector{0, -9.81, 0, 0}
	}
	return s
}

func writeSample(t *testing.T, s *storage.Storage, opts Options) string {
	t.Helper()
	st := stats.New()
	st.Set(stats.RunTime, 1.5)
	st.Set(stats.Timestep, 0.01)
	path := filepath.Join(t.TempDir(), "state.ssf")
	require.NoError(t, Write(path, s, st, opts))
	return path
}

func TestReadInfoHeaderFields(t *testing.T) {
	s := sampleStore(t, 10)
	path := writeSample(t, s, DefaultOptions())

	info, err := ReadInfo(path)
	require.NoError(t, err)

	assert.Equal(t, VersionLatest, info.Version)
	assert.False(t, info.Compact)
	assert.Equal(t, 10, info.ParticleCount)
	assert.Equal(t, 0, info.AttractorCount)
	assert.Equal(t, 0, info.MaterialCount)
	assert.Equal(t, 2, info.QuantityCount)
	assert.Equal(t, 1.5, info.RunTime)
	assert.Equal(t, 0.01, info.TimeStep)
	assert.True(t, math.IsNaN(info.Wallclock))
	assert.Equal(t, NoRunType, info.RunType)
	assert.NotEmpty(t, info.BuildDate)
}

func TestPreciseRoundTripPreservesBuffers(t *testing.T) {
	s := sampleStore(t, 10)
	path := writeSample(t, s, DefaultOptions())

	loaded, info, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, info.ParticleCount)
	require.NoError(t, loaded.IsValid(storage.ValidComplete))

	wantPos, _ := storage.Value[geometry.Vector](s, quantity.Position)
	gotPos, err := storage.Value[geometry.Vector](loaded, quantity.Position)
	require.NoError(t, err)
	assert.Equal(t, wantPos, gotPos)

	wantV, _ := storage.Dt[geometry.Vector](s, quantity.Position)
	gotV, err := storage.Dt[geometry.Vector](loaded, quantity.Position)
	require.NoError(t, err)
	assert.Equal(t, wantV, gotV)

	wantA, _ := storage.D2t[geometry.Vector](s, quantity.Position)
	gotA, err := storage.D2t[geometry.Vector](loaded, quantity.Position)
	require.NoError(t, err)
	assert.Equal(t, wantA, gotA)

	wantM, _ := storage.Value[float64](s, quantity.Mass)
	gotM, err := storage.Value[float64](loaded, quantity.Mass)
	require.NoError(t, err)
	assert.Equal(t, wantM, gotM)

	q, err := loaded.Quantity(quantity.Mass)
	require.NoError(t, err)
	assert.Equal(t, quantity.OrderFirst, q.Order())
}

func TestCompactRoundTripWithinTolerance(t *testing.T) {
	s := sampleStore(t, 6)
	path := writeSample(t, s, Options{Compact: true, RunType: NoRunType})

	info, err := ReadInfo(path)
	require.NoError(t, err)
	assert.True(t, info.Compact)

	loaded, _, err := Load(path)
	require.NoError(t, err)

	want, _ := storage.Value[geometry.Vector](s, quantity.Position)
	got, err := storage.Value[geometry.Vector](loaded, quantity.Position)
	require.NoError(t, err)
	for i := range want {
		for lane := 0; lane < 4; lane++ {
			assert.InDelta(t, want[i][lane], got[i][lane], 1e-4)
		}
	}
}

func TestMaterialsAndAttractorsRoundTrip(t *testing.T) {
	mat1 := storage.NewNullMaterial()
	mat1.SetParam(storage.ParamRestDensity, storage.FloatParam(2700))
	mat1.SetParam(storage.ParamLabel, storage.StringParam("basalt"))
	mat1.SetParam(storage.ParamEosType, storage.EnumParam(2))
	mat1.SetRange(quantity.Energy, mathx.NewInterval(0, 1e6), 10)
	mat2 := storage.NewNullMaterial()
	mat2.SetParam(storage.ParamRestDensity, storage.FloatParam(1000))

	s := storage.NewWithMaterial(mat1)
	_, err := storage.InsertValues(s, quantity.Energy, quantity.OrderZero, []float64{1, 2, 3, 4, 5})
	require.NoError(t, err)
	require.NoError(t, s.SetMaterial(3, 5, mat2))
	s.AddAttractor(storage.Attractor{
		Position: geometry.Vector{1, 2, 3, 0},
		Velocity: geometry.Vector{-1, 0, 0, 0},
		Mass:     42,
		Radius:   0.5,
	})

	path := writeSample(t, s, DefaultOptions())
	loaded, info, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, info.MaterialCount)
	assert.Equal(t, 1, info.AttractorCount)
	require.NoError(t, loaded.IsValid(storage.ValidComplete))

	require.Equal(t, 2, loaded.MaterialCount())
	first, err := loaded.Material(0)
	require.NoError(t, err)
	assert.Equal(t, 0, first.From)
	assert.Equal(t, 3, first.To)
	density, ok := first.Material.Param(storage.ParamRestDensity)
	require.True(t, ok)
	assert.Equal(t, 2700.0, density.Float)
	label, ok := first.Material.Param(storage.ParamLabel)
	require.True(t, ok)
	assert.Equal(t, "basalt", label.Str)
	eos, ok := first.Material.Param(storage.ParamEosType)
	require.True(t, ok)
	assert.Equal(t, int64(2), eos.Int)
	rng := first.Material.Range(quantity.Energy)
	assert.Equal(t, 0.0, rng.Lower)
	assert.Equal(t, 1e6, rng.Upper)
	assert.Equal(t, 10.0, first.Material.Minimal(quantity.Energy))

	second, err := loaded.Material(1)
	require.NoError(t, err)
	assert.Equal(t, 3, second.From)
	assert.Equal(t, 5, second.To)

	matIds, err := storage.Value[int64](loaded, quantity.MaterialId)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0, 0, 1, 1}, matIds)

	require.Equal(t, 1, loaded.AttractorCount())
	a := loaded.Attractors()[0]
	assert.Equal(t, geometry.Vector{1, 2, 3, 0}, a.Position)
	assert.Equal(t, 42.0, a.Mass)
	assert.Equal(t, 0.5, a.Radius)
}

func TestIndexQuantityRoundTrip(t *testing.T) {
	s := storage.New()
	_, err := storage.InsertValues(s, quantity.Flag, quantity.OrderZero, []int64{-3, 0, 7})
	require.NoError(t, err)

	for _, compact := range []bool{false, true} {
		path := writeSample(t, s, Options{Compact: compact, RunType: NoRunType})
		loaded, _, err := Load(path)
		require.NoError(t, err)
		got, err := storage.Value[int64](loaded, quantity.Flag)
		require.NoError(t, err)
		assert.Equal(t, []int64{-3, 0, 7}, got)
	}
}

func TestRunTypeSurvives(t *testing.T) {
	s := sampleStore(t, 2)
	path := writeSample(t, s, Options{RunType: 3})
	info, err := ReadInfo(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), info.RunType)
}

// writeHistorical builds a precise-mode file of an older layout: one
// first-order scalar quantity, no materials, no attractors.
func writeHistorical(t *testing.T, version Version, values, dts []float64) string {
	t.Helper()
	w := &serializer{}
	w.buf = append(w.buf, magicPrecise...)
	w.u32(uint32(version))
	w.u64(uint64(len(values)))
	w.u32(0)
	w.u32(1)
	w.f64(2.5)
	w.f64(0.125)
	if version >= Version20181024 {
		w.f64(640)
		w.u32(7)
	}
	if version >= Version20210320 {
		w.cstring(buildTag)
	}
	w.padTo(headerAlign)

	w.u32(uint32(quantity.Energy))
	w.u32(uint32(quantity.KindScalar))
	w.u32(uint32(quantity.OrderFirst))
	w.uint(0)
	w.uint(uint64(len(values)))
	for _, v := range values {
		w.float(v)
	}
	for _, v := range dts {
		w.float(v)
	}

	path := filepath.Join(t.TempDir(), "old.ssf")
	require.NoError(t, os.WriteFile(path, w.buf, 0o644))
	return path
}

func TestLoadsFirstVersionWithSentinelDefaults(t *testing.T) {
	path := writeHistorical(t, VersionFirst, []float64{10, 11, 12}, []float64{0.5, 0.5, 0.5})

	loaded, info, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, VersionFirst, info.Version)
	assert.Equal(t, 3, info.ParticleCount)
	assert.Equal(t, 0, info.AttractorCount)
	assert.Equal(t, 2.5, info.RunTime)
	assert.Equal(t, 0.125, info.TimeStep)

	// fields the version predates fall back to sentinels
	assert.True(t, math.IsNaN(info.Wallclock))
	assert.Equal(t, NoRunType, info.RunType)
	assert.Empty(t, info.BuildDate)

	vals, err := storage.Value[float64](loaded, quantity.Energy)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11, 12}, vals)
	rates, err := storage.Dt[float64](loaded, quantity.Energy)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, rates)
}

func TestLoadsWallclockVersionWithoutBuildTag(t *testing.T) {
	path := writeHistorical(t, Version20181024, []float64{1}, []float64{2})

	loaded, info, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Version20181024, info.Version)
	assert.Equal(t, 640.0, info.Wallclock)
	assert.Equal(t, uint32(7), info.RunType)
	assert.Empty(t, info.BuildDate)

	vals, err := storage.Value[float64](loaded, quantity.Energy)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, vals)
}

func TestRejectsUnknownMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.ssf")
	require.NoError(t, os.WriteFile(path, []byte("NOPE\x01\x02\x03\x04"), 0o644))
	_, err := ReadInfo(path)
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestRejectsTruncatedPayload(t *testing.T) {
	s := sampleStore(t, 8)
	path := writeSample(t, s, DefaultOptions())
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// the header alone survives, the payload does not
	require.NoError(t, os.WriteFile(path, data[:len(data)/2], 0o644))
	_, _, err = Load(path)
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestRejectsFutureVersion(t *testing.T) {
	s := sampleStore(t, 1)
	path := writeSample(t, s, DefaultOptions())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[4] = 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))
	_, err = ReadInfo(path)
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	s := sampleStore(t, 3)
	dir := t.TempDir()
	path := filepath.Join(dir, "state.ssf")
	require.NoError(t, Write(path, s, stats.New(), DefaultOptions()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.ssf", entries[0].Name())
}
