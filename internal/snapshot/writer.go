package snapshot

import (
	"fmt"
	"math"
	"os"

	"github.com/astroseed/gosph/internal/quantity"
	"github.com/astroseed/gosph/internal/stats"
	"github.com/astroseed/gosph/internal/storage"
)

// Options selects the encoding mode and run metadata of a snapshot.
type Options struct {
	// Compact halves integer and float widths in payload blocks.
	Compact bool
	// RunType tags the producing run; NoRunType when unmanaged.
	RunType uint32
}

func DefaultOptions() Options {
	return Options{RunType: NoRunType}
}

// Write serialises the store and run statistics into path. The file
// appears atomically: the bytes go to a sibling temp name first and
// are renamed over the target.
func Write(path string, store *storage.Storage, st *stats.Stats, opts Options) error {
	s := &serializer{compact: opts.Compact}

	qids := quantityIds(store)

	magic := magicPrecise
	if opts.Compact {
		magic = magicCompact
	}
	s.buf = append(s.buf, magic...)
	s.u32(uint32(VersionLatest))
	s.u64(uint64(store.ParticleCount()))
	s.u64(uint64(store.AttractorCount()))
	s.u32(uint32(store.MaterialCount()))
	s.u32(uint32(len(qids)))
	s.f64(stats.GetOr(st, stats.RunTime, 0.0))
	s.f64(stats.GetOr(st, stats.Timestep, 0.0))
	s.f64(stats.GetOr(st, stats.WallclockTime, math.NaN()))
	s.u32(opts.RunType)
	s.cstring(buildTag)
	s.padTo(headerAlign)

	for matId := 0; matId < store.MaterialCount(); matId++ {
		view, err := store.Material(matId)
		if err != nil {
			return err
		}
		writeMaterial(s, view, qids)
	}

	for _, id := range qids {
		q, err := store.Quantity(id)
		if err != nil {
			return err
		}
		s.u32(uint32(id))
		s.u32(uint32(q.Kind()))
		s.u32(uint32(q.Order()))
		s.uint(0)
		s.uint(uint64(q.Len()))
		for d := 0; d <= int(q.Order()); d++ {
			b, err := q.Buffer(d)
			if err != nil {
				return err
			}
			writeBuffer(s, b)
		}
	}

	for _, a := range store.Attractors() {
		for lane := 0; lane < 4; lane++ {
			s.float(a.Position[lane])
		}
		for lane := 0; lane < 4; lane++ {
			s.float(a.Velocity[lane])
		}
		s.float(a.Mass)
		s.float(a.Radius)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, s.buf, 0o644); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return nil
}

// quantityIds lists the serialised quantities. The material-id mapping
// is implied by the material ranges and never written.
func quantityIds(store *storage.Storage) []quantity.Id {
	ids := store.Ids()
	out := ids[:0]
	for _, id := range ids {
		if id != quantity.MaterialId {
			out = append(out, id)
		}
	}
	return out
}

func writeMaterial(s *serializer, view storage.MaterialView, qids []quantity.Id) {
	if view.Material != nil {
		for _, p := range view.Material.Params() {
			writeParam(s, p)
		}
	}
	s.u32(uint32(storage.ParamSentinel))
	for _, id := range qids {
		s.u32(uint32(id))
		if view.Material != nil {
			rng := view.Material.Range(id)
			s.float(rng.Lower)
			s.float(rng.Upper)
			s.float(view.Material.Minimal(id))
		} else {
			s.float(math.Inf(-1))
			s.float(math.Inf(1))
			s.float(0)
		}
	}
	s.uint(uint64(view.From))
	s.uint(uint64(view.To))
}

func writeParam(s *serializer, p storage.Param) {
	s.u32(uint32(p.Id))
	s.u32(uint32(p.Value.Kind))
	switch p.Value.Kind {
	case storage.ParamBool:
		if p.Value.Bool {
			s.uint(1)
		} else {
			s.uint(0)
		}
	case storage.ParamInt:
		s.int(p.Value.Int)
	case storage.ParamFloat:
		s.float(p.Value.Float)
	case storage.ParamString:
		s.cstring(p.Value.Str)
	case storage.ParamInterval:
		s.float(p.Value.Interval.Lower)
		s.float(p.Value.Interval.Upper)
	case storage.ParamVector:
		for lane := 0; lane < 4; lane++ {
			s.float(p.Value.Vector[lane])
		}
	case storage.ParamEnum:
		// the type hash is not portable across builds; readers ignore
		// it, so zero suffices
		s.int(p.Value.Int)
		s.uint(0)
	}
}

func writeBuffer(s *serializer, b quantity.Buffer) {
	if b.Kind() == quantity.KindIndex {
		for _, v := range b.Ints() {
			s.int(v)
		}
		return
	}
	for _, v := range b.Floats() {
		s.float(v)
	}
}
