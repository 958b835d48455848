package quantity

// Id is a stable identifier of a per-particle field. The integer
// values are part of the snapshot format and must never be reordered.
type Id uint32

const (
	// Position holds particle positions; the H lane of each vector
	// carries the smoothing length.
	Position Id = iota
	Density
	Mass
	Pressure
	Energy
	SoundSpeed
	DeviatoricStress
	Damage
	VelocityDivergence
	// MaterialId maps each particle to its material partition. It is
	// maintained by the store and not serialized; partitions are
	// always consecutive.
	MaterialId
	// PersistentIndex is a particle identity that survives removals
	// and merges. Unlike the plain particle index it is never reused.
	PersistentIndex
	TimeStep
	TimeStepCriterion
	NeighbourCount
	Flag

	idCount
)

var idNames = [idCount]string{
	Position:           "position",
	Density:            "density",
	Mass:               "mass",
	Pressure:           "pressure",
	Energy:             "energy",
	SoundSpeed:         "sound speed",
	DeviatoricStress:   "deviatoric stress",
	Damage:             "damage",
	VelocityDivergence: "velocity divergence",
	MaterialId:         "material id",
	PersistentIndex:    "persistent index",
	TimeStep:           "time step",
	TimeStepCriterion:  "time step criterion",
	NeighbourCount:     "neighbour count",
	Flag:               "flag",
}

func (id Id) String() string {
	if int(id) < len(idNames) && idNames[id] != "" {
		return idNames[id]
	}
	return "unknown"
}

// Valid reports whether the id belongs to the closed enumeration.
// Snapshot readers use it to reject corrupted quantity blocks.
func (id Id) Valid() bool {
	return id < idCount
}
