package storage

import (
	"slices"
	"sort"
	"weak"

	"github.com/astroseed/gosph/internal/quantity"
	"github.com/astroseed/gosph/internal/sched"
)

// ResizeFlag modifies the behaviour of Resize.
type ResizeFlag uint8

const (
	// KeepEmptyUnchanged preserves zero-length placeholder buffers
	// left by a selective clone instead of resizing them.
	KeepEmptyUnchanged ResizeFlag = 1 << iota
)

// IndicesFlag modifies the behaviour of Remove and Duplicate.
type IndicesFlag uint8

const (
	// IndicesSorted promises the input indices are already sorted.
	IndicesSorted IndicesFlag = 1 << iota
	// PropagateIndices forwards the mutation to dependent stores.
	PropagateIndices
)

// ValidFlag modifies the behaviour of IsValid.
type ValidFlag uint8

const (
	// ValidComplete additionally requires every buffer to match the
	// particle count; selective-clone placeholders are rejected.
	ValidComplete ValidFlag = 1 << iota
)

// UserData is an opaque per-store payload kept in sync with particle
// removals.
type UserData interface {
	Remove(sorted []int)
}

type matRange struct {
	material Material
	from     int
	to       int
}

// Storage is the heterogeneous particle store: a mapping from quantity
// id to typed buffer triples, an ordered sequence of material
// partitions tiling the particle index space, and a list of
// gravitational attractors.
//
// The store is single-writer. Structural mutations (Insert, Remove,
// Resize, Merge, Duplicate) must happen outside any parallel region;
// buffer contents may be written concurrently only through
// index-disjoint access patterns, which accessors do not enforce.
type Storage struct {
	quantities map[quantity.Id]*quantity.Quantity
	mats       []matRange
	attractors []Attractor
	dependents []weak.Pointer[Storage]
	userData   UserData

	// matIds aliases the MaterialId value buffer; refreshed by update
	// after every structural mutation.
	matIds []int64
}

// New creates an empty store with no materials.
func New() *Storage {
	return &Storage{quantities: make(map[quantity.Id]*quantity.Quantity)}
}

// NewWithMaterial creates an empty store owned by a single material.
// The partition becomes non-empty with the first inserted quantity.
func NewWithMaterial(mat Material) *Storage {
	s := New()
	s.mats = []matRange{{material: mat}}
	return s
}

// Has reports the presence of a quantity.
func (s *Storage) Has(id quantity.Id) bool {
	_, ok := s.quantities[id]
	return ok
}

// Quantity returns read/write access to a stored quantity.
func (s *Storage) Quantity(id quantity.Id) (*quantity.Quantity, error) {
	q, ok := s.quantities[id]
	if !ok {
		return nil, accessError("no quantity %q", id)
	}
	return q, nil
}

// Ids returns the stored quantity ids in ascending order.
func (s *Storage) Ids() []quantity.Id {
	ids := make([]quantity.Id, 0, len(s.quantities))
	for id := range s.quantities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ParticleCount returns the number of particles, zero for a store
// without quantities.
func (s *Storage) ParticleCount() int {
	for _, q := range s.quantities {
		return q.Len()
	}
	return 0
}

func (s *Storage) QuantityCount() int {
	return len(s.quantities)
}

func (s *Storage) MaterialCount() int {
	return len(s.mats)
}

func (s *Storage) AttractorCount() int {
	return len(s.attractors)
}

func (s *Storage) Empty() bool {
	return s.ParticleCount() == 0
}

func (s *Storage) AddAttractor(a Attractor) {
	s.attractors = append(s.attractors, a)
}

// Attractors returns the mutable attractor slice.
func (s *Storage) Attractors() []Attractor {
	return s.attractors
}

func (s *Storage) SetUserData(data UserData) {
	s.userData = data
}

func (s *Storage) GetUserData() UserData {
	return s.userData
}

// AddDependent registers another store to receive propagated
// structural mutations through a weak handle. Cyclic fan-outs are
// rejected.
func (s *Storage) AddDependent(dep *Storage) error {
	if dep == s || dep.reaches(s) || s.reaches(dep) {
		return setupError("cyclic store dependency")
	}
	s.dependents = append(s.dependents, weak.Make(dep))
	return nil
}

func (s *Storage) reaches(target *Storage) bool {
	for _, w := range s.dependents {
		d := w.Value()
		if d == nil {
			continue
		}
		if d == target || d.reaches(target) {
			return true
		}
	}
	return false
}

// propagate applies fn to every live dependent, depth first, pruning
// collected handles.
func (s *Storage) propagate(fn func(*Storage)) {
	live := s.dependents[:0]
	for _, w := range s.dependents {
		d := w.Value()
		if d == nil {
			continue
		}
		fn(d)
		d.propagate(fn)
		live = append(live, w)
	}
	s.dependents = live
}

// Material returns the view of the matId-th partition.
func (s *Storage) Material(matId int) (MaterialView, error) {
	if matId < 0 || matId >= len(s.mats) {
		return MaterialView{}, accessError("no material with index %d", matId)
	}
	m := s.mats[matId]
	return MaterialView{Material: m.material, From: m.from, To: m.to}, nil
}

// MaterialOfParticle resolves the partition containing a particle
// through the cached material-id view.
func (s *Storage) MaterialOfParticle(i int) (MaterialView, error) {
	if len(s.mats) == 0 || i < 0 || i >= len(s.matIds) {
		return MaterialView{}, accessError("no material for particle %d", i)
	}
	return s.Material(int(s.matIds[i]))
}

// ReplaceMaterial swaps the handle of an existing partition without
// changing its range.
func (s *Storage) ReplaceMaterial(matId int, mat Material) error {
	if matId < 0 || matId >= len(s.mats) {
		return accessError("no material with index %d", matId)
	}
	s.mats[matId].material = mat
	return nil
}

// IsHomogeneous reports whether all materials agree on a parameter.
func (s *Storage) IsHomogeneous(id ParamId) bool {
	if len(s.mats) == 0 {
		return true
	}
	first, ok := s.mats[0].material.Param(id)
	for _, m := range s.mats[1:] {
		v, ok2 := m.material.Param(id)
		if ok != ok2 || v != first {
			return false
		}
	}
	return true
}

// SetMaterial assigns a material to the particle range [from, to),
// splitting existing partitions at the boundaries and eagerly merging
// adjacent partitions sharing a handle. The material-id quantity is
// rewritten to the new mapping.
func (s *Storage) SetMaterial(from, to int, mat Material) error {
	cnt := s.ParticleCount()
	if from < 0 || to > cnt || from >= to {
		return accessError("material range [%d, %d) outside [0, %d)", from, to, cnt)
	}
	if len(s.mats) == 0 {
		// bootstrap: the first material must cover all particles
		if from != 0 || to != cnt {
			return setupError("first material must cover all particles")
		}
		s.mats = []matRange{{material: mat, from: 0, to: cnt}}
		if !s.Has(quantity.MaterialId) {
			s.quantities[quantity.MaterialId] = quantity.Make[int64](quantity.OrderZero, 0, cnt)
		}
		s.update()
		return nil
	}

	out := []matRange{{material: mat, from: from, to: to}}
	for _, m := range s.mats {
		if m.from < from {
			out = append(out, matRange{material: m.material, from: m.from, to: min(m.to, from)})
		}
		if m.to > to {
			out = append(out, matRange{material: m.material, from: max(m.from, to), to: m.to})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].from < out[j].from })
	s.mats = out
	s.mergeAdjacentMaterials()
	s.rewriteMatIds()
	return nil
}

// AssignMaterials replaces the partitioning wholesale. The views must
// be ordered and tile [0, N) exactly; the material-id quantity is
// created or rewritten to match. Snapshot restores use this to rebuild
// partitions without going through incremental splits.
func (s *Storage) AssignMaterials(views []MaterialView) error {
	cnt := s.ParticleCount()
	next := 0
	for _, v := range views {
		if v.From != next || v.To <= v.From {
			return setupError("material views do not tile [0, %d)", cnt)
		}
		next = v.To
	}
	if next != cnt {
		return setupError("material views do not tile [0, %d)", cnt)
	}
	s.mats = make([]matRange, len(views))
	for i, v := range views {
		s.mats[i] = matRange{material: v.Material, from: v.From, to: v.To}
	}
	if !s.Has(quantity.MaterialId) {
		s.quantities[quantity.MaterialId] = quantity.Make[int64](quantity.OrderZero, 0, cnt)
	}
	s.rewriteMatIds()
	return s.IsValid(0)
}

// mergeAdjacentMaterials cements consecutive partitions sharing a
// material handle.
func (s *Storage) mergeAdjacentMaterials() {
	for i := 1; i < len(s.mats); {
		if s.mats[i].material == s.mats[i-1].material {
			s.mats[i-1].to = s.mats[i].to
			s.mats = slices.Delete(s.mats, i, i+1)
		} else {
			i++
		}
	}
}

func (s *Storage) rewriteMatIds() {
	s.update()
	for matId, m := range s.mats {
		for i := m.from; i < m.to; i++ {
			s.matIds[i] = int64(matId)
		}
	}
}

// update refreshes the cached material-id view. It must run after any
// structural mutation before the next per-particle material lookup.
func (s *Storage) update() {
	if q, ok := s.quantities[quantity.MaterialId]; ok {
		ids, _ := quantity.Values[int64](q)
		s.matIds = ids
	} else {
		s.matIds = nil
	}
}

// addMissingBuffers inserts zero quantities for every key of source
// absent here and raises orders to match.
func (s *Storage) addMissingBuffers(source *Storage) {
	cnt := s.ParticleCount()
	for _, id := range source.Ids() {
		src := source.quantities[id]
		q, ok := s.quantities[id]
		if !ok {
			q = src.CloneZeros(cnt)
			s.quantities[id] = q
		}
		if q.Order() < src.Order() {
			_ = q.SetOrder(src.Order())
		}
	}
}

// Merge concatenates another store into this one: quantities pairwise
// (missing keys padded with zero buffers), material partitions shifted
// by the current particle count, persistent indices continued past the
// pre-merge maximum, attractors appended. The other store is left
// empty.
func (s *Storage) Merge(other *Storage) error {
	if s.userData != nil || other.userData != nil {
		return setupError("merging storages with user data is not supported")
	}

	// allow merging into an empty storage for convenience
	if s.QuantityCount() == 0 {
		head := s.attractors
		s.quantities = other.quantities
		s.mats = other.mats
		s.attractors = append(slices.Clone(head), other.attractors...)
		other.quantities = make(map[quantity.Id]*quantity.Quantity)
		other.mats = nil
		other.attractors = nil
		other.update()
		s.update()
		return nil
	}
	if other.QuantityCount() == 0 {
		s.attractors = append(s.attractors, other.attractors...)
		other.attractors = nil
		return nil
	}

	s.addMissingBuffers(other)
	other.addMissingBuffers(s)

	// make sure that either both have materials or neither
	if (s.MaterialCount() > 0) != (other.MaterialCount() > 0) {
		bare := s
		if s.MaterialCount() > 0 {
			bare = other
		}
		cnt := bare.ParticleCount()
		bare.mats = []matRange{{material: NewNullMaterial(), from: 0, to: cnt}}
		bare.quantities[quantity.MaterialId] = quantity.Make[int64](quantity.OrderZero, 0, cnt)
		bare.update()
	}

	partCnt := s.ParticleCount()

	// shift material partitions and ids of the other side
	for i := range other.mats {
		other.mats[i].from += partCnt
		other.mats[i].to += partCnt
	}
	if other.Has(quantity.MaterialId) {
		matCnt := int64(s.MaterialCount())
		other.update()
		for i := range other.matIds {
			other.matIds[i] += matCnt
		}
	}

	// concatenate all buffers pairwise
	for _, id := range s.Ids() {
		q := s.quantities[id]
		oq := other.quantities[id]
		for d := 0; d <= int(q.Order()); d++ {
			b, _ := q.Buffer(d)
			ob, err := oq.Buffer(d)
			if err != nil {
				return err
			}
			if err := b.Append(ob); err != nil {
				return err
			}
		}
	}

	// continue persistent indices past the pre-merge maximum
	if q, ok := s.quantities[quantity.PersistentIndex]; ok {
		idxs, err := quantity.Values[int64](q)
		if err != nil {
			return err
		}
		var next int64
		for _, idx := range idxs[:partCnt] {
			next = max(next, idx+1)
		}
		for i := partCnt; i < len(idxs); i++ {
			idxs[i] = next + int64(i-partCnt)
		}
	}

	// merge partitions; cement consecutive duplicates, compacting the
	// material-id values above the removed slot
	s.mats = append(s.mats, other.mats...)
	s.update()
	for matId := 1; matId < len(s.mats); {
		if s.mats[matId].material == s.mats[matId-1].material {
			s.mats[matId-1].to = s.mats[matId].to
			s.mats = slices.Delete(s.mats, matId, matId+1)
			for i := range s.matIds {
				if s.matIds[i] >= int64(matId) {
					s.matIds[i]--
				}
			}
		} else {
			matId++
		}
	}

	s.attractors = append(s.attractors, other.attractors...)

	// buffers were moved away; leave the other side consistent
	other.RemoveAll()

	s.update()
	return s.IsValid(0)
}

// ZeroHighestDerivatives fills the top derivative buffer of every
// quantity with zeros in parallel, and zeroes attractor accelerations.
func (s *Storage) ZeroHighestDerivatives(scheduler sched.Scheduler) {
	var tops []quantity.Buffer
	for _, q := range s.quantities {
		if top := q.HighestDerivative(); top != nil {
			tops = append(tops, top)
		}
	}
	sched.ParallelFor(scheduler, 0, len(tops), 1, func(from, to int) {
		for i := from; i < to; i++ {
			tops[i].Zero()
		}
	})
	for i := range s.attractors {
		s.attractors[i].Acceleration = [4]float64{}
	}
}

// Clone reproduces the store without user data. Buffers outside the
// selection become zero-length placeholders; materials are cloned only
// together with the material-id quantity, attractors only when cloning
// everything.
func (s *Storage) Clone(sel quantity.Selection) *Storage {
	c := New()
	for id, q := range s.quantities {
		c.quantities[id] = q.Clone(sel)
	}
	if mq, ok := c.quantities[quantity.MaterialId]; ok && mq.Len() > 0 {
		c.mats = slices.Clone(s.mats)
	}
	if sel&quantity.AllBuffers != 0 {
		c.attractors = slices.Clone(s.attractors)
	}
	c.update()
	return c
}

// Resize grows or shrinks every buffer uniformly; new slots are
// zero-initialised. Fails when more than one material exists.
func (s *Storage) Resize(n int, flags ResizeFlag) error {
	if s.QuantityCount() == 0 {
		return setupError("cannot resize a storage without quantities")
	}
	if s.MaterialCount() > 1 {
		return setupError("cannot resize a storage with multiple materials")
	}
	if s.userData != nil {
		return setupError("cannot resize a storage with user data")
	}

	for _, q := range s.quantities {
		for d := 0; d <= int(q.Order()); d++ {
			b, _ := q.Buffer(d)
			if flags&KeepEmptyUnchanged != 0 && b.Len() == 0 {
				continue
			}
			b.Resize(n)
		}
	}
	if len(s.mats) > 0 {
		s.mats[0].from = 0
		s.mats[0].to = n
	}

	// dependents are selective clones; their placeholders must survive
	s.propagate(func(dep *Storage) { _ = dep.Resize(n, flags|KeepEmptyUnchanged) })

	s.update()
	if flags&KeepEmptyUnchanged != 0 {
		return s.IsValid(0)
	}
	return s.IsValid(ValidComplete)
}

// Swap exchanges the buffers matching the selection with another
// store holding the same quantity set.
func (s *Storage) Swap(other *Storage, sel quantity.Selection) error {
	if s.QuantityCount() != other.QuantityCount() {
		return setupError("swapping storages with different quantities")
	}
	for _, id := range s.Ids() {
		oq, ok := other.quantities[id]
		if !ok {
			return setupError("swapping storages with different quantities")
		}
		if err := s.quantities[id].Swap(oq, sel); err != nil {
			return err
		}
	}
	if sel&quantity.AllBuffers != 0 {
		s.attractors, other.attractors = other.attractors, s.attractors
	}
	s.update()
	other.update()
	return nil
}

// IsValid audits the store invariants, returning a descriptive error
// on the first violation. The reference particle count is the largest
// buffer, so selective clones with zero-length placeholders audit
// cleanly in the default mode.
func (s *Storage) IsValid(flags ValidFlag) error {
	cnt := 0
	s.eachBuffer(func(b quantity.Buffer) { cnt = max(cnt, b.Len()) })

	for _, id := range s.Ids() {
		q := s.quantities[id]
		for d := 0; d <= int(q.Order()); d++ {
			b, _ := q.Buffer(d)
			if b.Len() != cnt && (flags&ValidComplete != 0 || b.Len() != 0) {
				return setupError("quantity %q buffer %d has %d particles, expected %d", id, d, b.Len(), cnt)
			}
		}
	}

	if s.MaterialCount() == 0 {
		if q, ok := s.quantities[quantity.MaterialId]; ok && q.Len() > 0 {
			return setupError("material-id quantity present without materials")
		}
		return nil
	}
	if s.QuantityCount() == 0 {
		return nil
	}
	if cnt == 0 {
		// empty store carrying material handles: collapsed ranges only
		for _, m := range s.mats {
			if m.from != 0 || m.to != 0 {
				return setupError("empty storage with non-collapsed material range")
			}
		}
		return nil
	}

	if (s.matIds != nil) != s.Has(quantity.MaterialId) {
		return setupError("material-id view not in sync with the material-id quantity")
	}
	if s.Has(quantity.MaterialId) {
		vals, _ := quantity.Values[int64](s.quantities[quantity.MaterialId])
		if len(vals) != len(s.matIds) || (len(vals) > 0 && &vals[0] != &s.matIds[0]) {
			return setupError("cached material-id view does not alias the stored quantity; missing update?")
		}
	}

	for matId, m := range s.mats {
		for i := m.from; i < m.to; i++ {
			if int(s.matIds[i]) != matId {
				return setupError("particle %d has material id %d outside its partition %d", i, s.matIds[i], matId)
			}
		}
		if matId+1 < len(s.mats) && m.to != s.mats[matId+1].from {
			return setupError("material partitions are not consecutive at index %d", matId)
		}
		if m.from >= m.to {
			return setupError("empty material partition %d", matId)
		}
	}
	if s.mats[0].from != 0 || s.mats[len(s.mats)-1].to != cnt {
		return setupError("material partitions do not tile [0, %d)", cnt)
	}
	return nil
}

// Duplicate appends copies of the selected particles after each source
// particle's material partition, preserving the sorted material order,
// and returns the indices of the created particles.
func (s *Storage) Duplicate(idxs []int, flags IndicesFlag) ([]int, error) {
	if s.userData != nil {
		return nil, setupError("duplicating particles in a storage with user data is not supported")
	}
	sorted := idxs
	if flags&IndicesSorted == 0 {
		sorted = slices.Clone(idxs)
		slices.Sort(sorted)
	}

	var created []int
	if s.Has(quantity.MaterialId) {
		// split by material, then insert each group at the end of its
		// partition, walking materials from the back so earlier
		// insertion points stay valid
		perMat := make([][]int, len(s.mats))
		for _, i := range sorted {
			matId := s.matIds[i]
			perMat[matId] = append(perMat[matId], i)
		}
		for matId := len(perMat) - 1; matId >= 0; matId-- {
			group := perMat[matId]
			if len(group) == 0 {
				continue
			}
			at := s.mats[matId].to
			s.eachBuffer(func(b quantity.Buffer) {
				b.InsertCopies(at, group)
			})
			for j := range created {
				created[j] += len(group)
			}
			for i := range group {
				created = append(created, at+i)
			}
		}

		// the material-id values stay sorted, so the partition bounds
		// are recovered by binary search
		s.update()
		for matId := range s.mats {
			s.mats[matId].from = lowerBound(s.matIds, int64(matId))
			s.mats[matId].to = lowerBound(s.matIds, int64(matId)+1)
		}
	} else {
		n0 := s.ParticleCount()
		for i := range sorted {
			created = append(created, n0+i)
		}
		s.eachBuffer(func(b quantity.Buffer) {
			b.InsertCopies(b.Len(), sorted)
		})
	}

	s.update()
	if err := s.IsValid(0); err != nil {
		return nil, err
	}

	if flags&PropagateIndices != 0 {
		s.propagate(func(dep *Storage) {
			_, _ = dep.Duplicate(sorted, IndicesSorted)
		})
	}

	slices.Sort(created)
	return created, nil
}

// Remove erases the particles at the given indices and collapses
// partitions left empty.
func (s *Storage) Remove(idxs []int, flags IndicesFlag) error {
	if len(idxs) == 0 {
		return nil
	}
	sorted := idxs
	if flags&IndicesSorted == 0 {
		sorted = slices.Clone(idxs)
		slices.Sort(sorted)
	}

	if err := s.removeSorted(sorted, ValidComplete); err != nil {
		return err
	}

	if flags&PropagateIndices != 0 {
		s.propagate(func(dep *Storage) {
			_ = dep.removeSorted(sorted, 0)
		})
	}
	return nil
}

func (s *Storage) removeSorted(sorted []int, flags ValidFlag) error {
	cnt := 0
	s.eachBuffer(func(b quantity.Buffer) { cnt = max(cnt, b.Len()) })
	s.eachBuffer(func(b quantity.Buffer) {
		// placeholder buffers of selective clones are left alone
		if b.Len() == cnt {
			b.Remove(sorted)
		}
	})

	s.update()

	// regenerate material partitions; defer removal of emptied
	// materials to keep indices stable during the scan
	if s.Has(quantity.MaterialId) {
		var matsToRemove []int
		for matId := range s.mats {
			from := lowerBound(s.matIds, int64(matId))
			to := lowerBound(s.matIds, int64(matId)+1)
			if from < to {
				s.mats[matId].from = from
				s.mats[matId].to = to
			} else {
				matsToRemove = append(matsToRemove, matId)
			}
		}
		for i := len(matsToRemove) - 1; i >= 0; i-- {
			matId := matsToRemove[i]
			if s.ParticleCount() == 0 && len(s.mats) == 1 {
				// an emptied store keeps its last material handle
				s.mats[0].from = 0
				s.mats[0].to = 0
				break
			}
			s.mats = slices.Delete(s.mats, matId, matId+1)
		}

		// re-assign material ids after removed materials
		for matId, m := range s.mats {
			for i := m.from; i < m.to; i++ {
				s.matIds[i] = int64(matId)
			}
		}
	}

	if s.userData != nil {
		s.userData.Remove(sorted)
	}

	return s.IsValid(flags)
}

// RemoveAll resets the store to the empty state, keeping nothing, and
// propagates the reset to dependents.
func (s *Storage) RemoveAll() {
	s.propagate(func(dep *Storage) { dep.RemoveAll() })
	s.quantities = make(map[quantity.Id]*quantity.Quantity)
	s.mats = nil
	s.attractors = nil
	s.userData = nil
	s.matIds = nil
}

// eachBuffer visits every buffer of every quantity, in ascending
// quantity order.
func (s *Storage) eachBuffer(fn func(b quantity.Buffer)) {
	for _, id := range s.Ids() {
		q := s.quantities[id]
		for d := 0; d <= int(q.Order()); d++ {
			b, _ := q.Buffer(d)
			fn(b)
		}
	}
}

// lowerBound returns the first index at which v could be inserted
// keeping vals sorted.
func lowerBound(vals []int64, v int64) int {
	return sort.Search(len(vals), func(i int) bool { return vals[i] >= v })
}
