package filter

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/gogpu/gg"
	"github.com/opd-ai/camfx/frame"
	"github.com/sirupsen/logrus"
)

// Simulation constants.
const (
	MaxBurstSize   = 160
	TrailLength    = 10
	Friction       = 0.98
	Gravity        = 0.05
	AlphaDecay     = 0.005
	ExpireAlpha    = 0.01
	ExpireRadius   = 0.5
	ParticleRadius = 2.0
	SpawnChance    = 0.02
	SeedBursts     = 5
)

// BurstColors are the firework colors; one is picked per burst.
var BurstColors = []gg.RGBA{
	gg.Hex("#FF0000"),
	gg.Hex("#00FF00"),
	gg.Hex("#0000FF"),
	gg.Hex("#FFFF00"),
	gg.Hex("#00FFFF"),
	gg.Hex("#FF00FF"),
	gg.Hex("#FFFFFF"),
}

// TrailPoint is one remembered particle position.
type TrailPoint struct {
	X, Y, Radius float64
}

// Particle is one spark of a burst.
type Particle struct {
	X, Y   float64
	VX, VY float64
	Radius float64
	Alpha  float64
	Color  gg.RGBA
	Trail  []TrailPoint
}

// Expired reports whether the particle should be removed.
func (p *Particle) Expired() bool {
	return p.Alpha <= ExpireAlpha || p.Radius < ExpireRadius
}

func (p *Particle) advance() {
	p.VX *= Friction
	p.VY *= Friction
	p.VY += Gravity
	p.X += p.VX
	p.Y += p.VY
	p.Alpha -= AlphaDecay

	p.Trail = append(p.Trail, TrailPoint{X: p.X, Y: p.Y, Radius: p.Radius * 0.5})
	if len(p.Trail) > TrailLength {
		p.Trail = p.Trail[1:]
	}
}

// Simulation is the particle state behind the fireworks background.
//
// It is the only filter state that survives between frames. A Simulation is
// not safe for concurrent use; it belongs to the render loop that created it.
type Simulation struct {
	width, height int
	particles     []*Particle
	rng           *rand.Rand
	spawnChance   float64
}

// NewSimulation creates an empty simulation for a width x height area.
// A nil rng selects a randomly seeded generator.
func NewSimulation(width, height int, rng *rand.Rand) *Simulation {
	if rng == nil {
		rng = newRand()
	}
	return &Simulation{width: width, height: height, rng: rng, spawnChance: SpawnChance}
}

// SetSpawnChance sets the per-tick probability of a spontaneous burst.
func (s *Simulation) SetSpawnChance(p float64) {
	s.spawnChance = p
}

// Resize changes the area new bursts are placed in. Live particles keep
// their coordinates.
func (s *Simulation) Resize(width, height int) {
	s.width, s.height = width, height
}

// Count returns the number of live particles.
func (s *Simulation) Count() int {
	return len(s.particles)
}

// Particles returns the live particles. The slice is owned by the simulation.
func (s *Simulation) Particles() []*Particle {
	return s.particles
}

// Burst spawns between 0 and MaxBurstSize-1 particles of one color at (x, y)
// and returns how many were added.
func (s *Simulation) Burst(x, y float64) int {
	n := s.rng.IntN(MaxBurstSize)
	c := BurstColors[s.rng.IntN(len(BurstColors))]
	for i := 0; i < n; i++ {
		angle := s.rng.Float64() * 2 * math.Pi
		speed := s.rng.Float64()*3 + 1
		s.particles = append(s.particles, &Particle{
			X:      x,
			Y:      y,
			VX:     math.Cos(angle) * speed,
			VY:     math.Sin(angle) * speed,
			Radius: ParticleRadius,
			Alpha:  1,
			Color:  c,
			Trail:  make([]TrailPoint, 0, TrailLength+1),
		})
	}
	return n
}

// Advance moves every particle one step and drops expired ones.
func (s *Simulation) Advance() {
	live := s.particles[:0]
	for _, p := range s.particles {
		p.advance()
		if !p.Expired() {
			live = append(live, p)
		}
	}
	for i := len(live); i < len(s.particles); i++ {
		s.particles[i] = nil
	}
	s.particles = live
}

// Tick runs one animation step: reseed when empty, advance, then maybe
// launch a new burst at 30% height.
func (s *Simulation) Tick() {
	if len(s.particles) == 0 {
		for i := 0; i < SeedBursts; i++ {
			s.Burst(s.rng.Float64()*float64(s.width), s.rng.Float64()*float64(s.height)/2)
		}
	}
	s.Advance()
	if s.rng.Float64() < s.spawnChance {
		s.Burst(s.rng.Float64()*float64(s.width), float64(s.height)*0.3)
	}
}

// Fireworks renders the simulation onto a black frame with gogpu/gg.
// The input content is discarded.
type Fireworks struct {
	sim *Simulation
	pm  *gg.Pixmap
	dc  *gg.Context
}

// NewFireworks creates a fireworks filter driving sim.
func NewFireworks(sim *Simulation) *Fireworks {
	return &Fireworks{sim: sim}
}

// Simulation returns the driven simulation.
func (f *Fireworks) Simulation() *Simulation {
	return f.sim
}

// Apply advances the simulation one tick and draws it into buf.
func (f *Fireworks) Apply(buf *frame.Buffer) error {
	if buf == nil {
		return frame.ErrNilBuffer
	}
	f.ensureSurface(buf.Width, buf.Height)
	f.sim.Tick()

	f.dc.ClearWithColor(gg.RGBA{A: 1})
	for _, p := range f.sim.particles {
		f.dc.SetRGBA(p.Color.R, p.Color.G, p.Color.B, p.Alpha)
		for _, t := range p.Trail {
			f.dc.DrawCircle(t.X, t.Y, t.Radius)
		}
		f.dc.DrawCircle(p.X, p.Y, p.Radius)
		if err := f.dc.Fill(); err != nil {
			return fmt.Errorf("fill particle: %w", err)
		}
	}

	copy(buf.Pix, f.pm.Data())
	for i := 3; i < len(buf.Pix); i += 4 {
		buf.Pix[i] = 255
	}
	return nil
}

func (f *Fireworks) ensureSurface(w, h int) {
	if f.pm != nil && f.pm.Width() == w && f.pm.Height() == h {
		return
	}
	if f.dc != nil {
		_ = f.dc.Close()
	}
	f.pm = gg.NewPixmap(w, h)
	f.dc = gg.NewContext(w, h, gg.WithPixmap(f.pm))
	f.sim.Resize(w, h)

	logrus.WithFields(logrus.Fields{
		"function": "Fireworks.ensureSurface",
		"width":    w,
		"height":   h,
	}).Debug("Allocated fireworks surface")
}

// Close releases the drawing surface.
func (f *Fireworks) Close() error {
	if f.dc == nil {
		return nil
	}
	err := f.dc.Close()
	f.dc, f.pm = nil, nil
	return err
}

// Name returns the filter name.
func (f *Fireworks) Name() string {
	return "fireworks"
}
