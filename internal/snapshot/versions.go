// Package snapshot reads and writes the versioned binary particle
// snapshot format. The precise mode stores 64-bit integers and
// doubles; the compact mode halves both. Readers accept every
// historical version and default absent header fields to sentinels.
package snapshot

import "errors"

// Version tags the on-disk layout. Versions are additive: newer
// versions only append header fields, each guarded by the version it
// appeared in.
type Version uint32

const (
	// VersionFirst covers the base header up to the time step.
	VersionFirst Version = iota
	// Version20181024 added the wallclock time and the run type.
	Version20181024
	// Version20210320 added the build tag string.
	Version20210320
	// Version20210808 added the attractor count and blocks.
	Version20210808

	VersionLatest = Version20210808
)

const (
	magicPrecise = "SPH\x00"
	magicCompact = "CPR\x00"

	// headerAlign pads the header to a fixed boundary so payload
	// blocks start aligned.
	headerAlign = 64

	// NoRunType is the run-type sentinel for snapshots written outside
	// a managed run.
	NoRunType uint32 = 0xFFFFFFFF

	buildTag = "gosph"
)

// ErrInvalidFormat indicates an unrecognised magic, an unknown
// version, or a truncated payload.
var ErrInvalidFormat = errors.New("snapshot: invalid format")

// Info is the decoded snapshot header.
type Info struct {
	Version        Version
	Compact        bool
	ParticleCount  int
	AttractorCount int
	MaterialCount  int
	QuantityCount  int
	RunTime        float64
	TimeStep       float64
	// Wallclock is the elapsed real time in milliseconds, NaN when the
	// snapshot predates the field.
	Wallclock float64
	RunType   uint32
	BuildDate string
}
