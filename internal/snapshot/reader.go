package snapshot

import (
	"fmt"
	"math"
	"os"

	"github.com/astroseed/gosph/internal/geometry"
	"github.com/astroseed/gosph/internal/mathx"
	"github.com/astroseed/gosph/internal/quantity"
	"github.com/astroseed/gosph/internal/storage"
)

// ReadInfo decodes only the header of a snapshot.
func ReadInfo(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, fmt.Errorf("snapshot: %w", err)
	}
	_, info, err := readHeader(data)
	return info, err
}

func readHeader(data []byte) (*deserializer, Info, error) {
	if len(data) < 8 {
		return nil, Info{}, fmt.Errorf("%w: file shorter than the magic", ErrInvalidFormat)
	}
	var compact bool
	switch string(data[:4]) {
	case magicPrecise:
	case magicCompact:
		compact = true
	default:
		return nil, Info{}, fmt.Errorf("%w: unrecognised magic %q", ErrInvalidFormat, data[:4])
	}
	d := &deserializer{data: data, pos: 4, compact: compact}

	version := Version(d.u32("version"))
	if version > VersionLatest {
		return nil, Info{}, fmt.Errorf("%w: unknown version %d", ErrInvalidFormat, version)
	}
	info := Info{
		Version:   version,
		Compact:   compact,
		Wallclock: math.NaN(),
		RunType:   NoRunType,
	}
	info.ParticleCount = int(d.u64("particle count"))
	if version >= Version20210808 {
		info.AttractorCount = int(d.u64("attractor count"))
	}
	info.MaterialCount = int(d.u32("material count"))
	info.QuantityCount = int(d.u32("quantity count"))
	info.RunTime = d.f64("run time")
	info.TimeStep = d.f64("time step")
	if version >= Version20181024 {
		info.Wallclock = d.f64("wallclock time")
		info.RunType = d.u32("run type")
	}
	if version >= Version20210320 {
		info.BuildDate = d.cstring("build tag")
	}
	d.skipTo(headerAlign)
	return d, info, d.err
}

// Load decodes the full snapshot into a fresh store.
func Load(path string) (*storage.Storage, Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Info{}, fmt.Errorf("snapshot: %w", err)
	}
	d, info, err := readHeader(data)
	if err != nil {
		return nil, info, err
	}

	type matBlock struct {
		mat      *storage.NullMaterial
		from, to int
	}
	blocks := make([]matBlock, 0, info.MaterialCount)
	for i := 0; i < info.MaterialCount; i++ {
		mat := storage.NewNullMaterial()
		readParams(d, mat)
		for j := 0; j < info.QuantityCount; j++ {
			id := quantity.Id(d.u32("range record id"))
			lower := d.float("range lower")
			upper := d.float("range upper")
			minimal := d.float("range minimal")
			mat.SetRange(id, mathx.NewInterval(lower, upper), minimal)
		}
		from := int(d.uint("material from"))
		to := int(d.uint("material to"))
		blocks = append(blocks, matBlock{mat: mat, from: from, to: to})
		if d.err != nil {
			return nil, info, d.err
		}
	}

	store := storage.New()
	for i := 0; i < info.QuantityCount; i++ {
		id := quantity.Id(d.u32("quantity id"))
		kind := quantity.Kind(d.u32("quantity kind"))
		order := quantity.Order(d.u32("quantity order"))
		from := int(d.uint("quantity from"))
		to := int(d.uint("quantity to"))
		if d.err != nil {
			return nil, info, d.err
		}
		if !kind.Valid() || !order.Valid() || from != 0 || to != info.ParticleCount {
			return nil, info, fmt.Errorf("%w: malformed block for quantity %d", ErrInvalidFormat, id)
		}
		if err := readQuantity(d, store, id, kind, order, to-from); err != nil {
			return nil, info, err
		}
	}

	if len(blocks) > 0 {
		views := make([]storage.MaterialView, len(blocks))
		for i, b := range blocks {
			views[i] = storage.MaterialView{Material: b.mat, From: b.from, To: b.to}
		}
		if err := store.AssignMaterials(views); err != nil {
			return nil, info, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
	}

	for i := 0; i < info.AttractorCount; i++ {
		var a storage.Attractor
		for lane := 0; lane < 4; lane++ {
			a.Position[lane] = d.float("attractor position")
		}
		for lane := 0; lane < 4; lane++ {
			a.Velocity[lane] = d.float("attractor velocity")
		}
		a.Mass = d.float("attractor mass")
		a.Radius = d.float("attractor radius")
		store.AddAttractor(a)
	}
	if d.err != nil {
		return nil, info, d.err
	}
	return store, info, nil
}

func readParams(d *deserializer, mat *storage.NullMaterial) {
	for {
		key := d.u32("param key")
		if d.err != nil || key == uint32(storage.ParamSentinel) {
			return
		}
		kind := storage.ParamKind(d.u32("param kind"))
		var v storage.ParamValue
		v.Kind = kind
		switch kind {
		case storage.ParamBool:
			v.Bool = d.uint("bool param") != 0
		case storage.ParamInt:
			v.Int = d.int("int param")
		case storage.ParamFloat:
			v.Float = d.float("float param")
		case storage.ParamString:
			v.Str = d.cstring("string param")
		case storage.ParamInterval:
			v.Interval = mathx.NewInterval(d.float("interval lower"), d.float("interval upper"))
		case storage.ParamVector:
			for lane := 0; lane < 4; lane++ {
				v.Vector[lane] = d.float("vector param")
			}
		case storage.ParamEnum:
			v.Int = d.int("enum param")
			d.uint("enum type hash")
		default:
			d.fail("param value")
			return
		}
		mat.SetParam(storage.ParamId(key), v)
	}
}

func readQuantity(d *deserializer, store *storage.Storage, id quantity.Id, kind quantity.Kind, order quantity.Order, n int) error {
	switch kind {
	case quantity.KindScalar:
		return readTyped(d, store, id, order, n, func() float64 {
			return d.float("scalar payload")
		})
	case quantity.KindVector:
		return readTyped(d, store, id, order, n, func() geometry.Vector {
			var v geometry.Vector
			for lane := 0; lane < 4; lane++ {
				v[lane] = d.float("vector payload")
			}
			return v
		})
	case quantity.KindSymmetricTensor:
		return readTyped(d, store, id, order, n, func() geometry.SymmetricTensor {
			var t geometry.SymmetricTensor
			for c := 0; c < 6; c++ {
				t[c] = d.float("tensor payload")
			}
			return t
		})
	case quantity.KindTracelessTensor:
		return readTyped(d, store, id, order, n, func() geometry.TracelessTensor {
			var t geometry.TracelessTensor
			for c := 0; c < 5; c++ {
				t[c] = d.float("tensor payload")
			}
			return t
		})
	case quantity.KindTensor:
		return readTyped(d, store, id, order, n, func() geometry.Tensor {
			var t geometry.Tensor
			for c := 0; c < 9; c++ {
				t[c] = d.float("tensor payload")
			}
			return t
		})
	case quantity.KindIndex:
		return readTyped(d, store, id, order, n, func() int64 {
			return d.int("index payload")
		})
	default:
		return fmt.Errorf("%w: unknown value kind %d", ErrInvalidFormat, kind)
	}
}

func readTyped[T quantity.Element](d *deserializer, store *storage.Storage, id quantity.Id, order quantity.Order, n int, decode func() T) error {
	vals := make([]T, n)
	for i := range vals {
		vals[i] = decode()
	}
	if d.err != nil {
		return d.err
	}
	q, err := storage.InsertValues(store, id, order, vals)
	if err != nil {
		return err
	}
	for deriv := 1; deriv <= int(order); deriv++ {
		b, err := q.Buffer(deriv)
		if err != nil {
			return err
		}
		data, err := quantity.Data[T](b)
		if err != nil {
			return err
		}
		for i := range data {
			data[i] = decode()
		}
	}
	return d.err
}
