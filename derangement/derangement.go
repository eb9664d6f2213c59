/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package derangement pairs every name in a list with another name from the
// same list, so that nobody is paired with themselves.
//
// The default strategy shuffles the receivers and then repairs fixed points
// by swapping each one with its right-hand neighbour, rescanning from the
// start after every swap. The result is always a valid derangement, but it
// is not drawn uniformly from all derangements. Set Generator.Uniform to use
// rejection sampling instead.
package derangement

import (
	crand "crypto/rand"
	"errors"
	"math/rand/v2"
	"sync"
)

// DefaultMaxPasses bounds the repair scans (or reshuffles, in uniform mode).
const DefaultMaxPasses = 100

var (
	ErrInsufficientParticipants = errors.New("at least two participants are required")
	ErrDerangementFailed        = errors.New("could not produce a derangement within the pass budget")
	ErrDuplicateName            = errors.New("participant names must be unique")
)

// Rand is the source of shuffle indices. *rand.Rand satisfies it.
type Rand interface {
	// IntN returns a value in [0, n).
	IntN(n int) int
}

// Pair is a single giver → receiver assignment.
type Pair struct {
	Giver    string
	Receiver string
}

// Generator is safe for concurrent use. The zero value is usable and seeds
// itself on first use.
type Generator struct {
	Rand      Rand
	MaxPasses int
	Uniform   bool

	mu sync.Mutex
}

// New returns a generator backed by a ChaCha8 source seeded from crypto/rand.
func New() *Generator {
	return &Generator{
		Rand:      newSource(),
		MaxPasses: DefaultMaxPasses,
	}
}

func newSource() *rand.Rand {
	var seed [32]byte
	crand.Read(seed[:])

	return rand.New(rand.NewChaCha8(seed))
}

// Generate maps every name to the name it gives to.
func Generate(names []string) (map[string]string, error) {
	return New().Generate(names)
}

// Pairs returns the assignment in the order the givers were supplied.
func Pairs(names []string) ([]Pair, error) {
	return New().Pairs(names)
}

func (g *Generator) Generate(names []string) (map[string]string, error) {
	pairs, err := g.Pairs(names)
	if err != nil {
		return nil, err
	}

	mapping := make(map[string]string, len(pairs))
	for _, p := range pairs {
		mapping[p.Giver] = p.Receiver
	}

	return mapping, nil
}

func (g *Generator) Pairs(names []string) ([]Pair, error) {
	if len(names) < 2 {
		return nil, ErrInsufficientParticipants
	}

	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			return nil, ErrDuplicateName
		}
		seen[name] = struct{}{}
	}

	givers := names
	receivers := make([]string, len(names))
	copy(receivers, names)

	g.mu.Lock()
	defer g.mu.Unlock()

	var ok bool
	if g.Uniform {
		ok = g.reject(givers, receivers)
	} else {
		ok = g.repair(givers, receivers)
	}
	if !ok {
		return nil, ErrDerangementFailed
	}

	pairs := make([]Pair, len(givers))
	for i := range givers {
		pairs[i] = Pair{Giver: givers[i], Receiver: receivers[i]}
	}

	return pairs, nil
}

// repair shuffles once, then resolves fixed points one swap per pass.
func (g *Generator) repair(givers, receivers []string) bool {
	g.shuffle(receivers)

	n := len(receivers)
	for pass := 0; pass < g.maxPasses(); pass++ {
		i := fixedPoint(givers, receivers)
		if i < 0 {
			return true
		}

		j := (i + 1) % n
		receivers[i], receivers[j] = receivers[j], receivers[i]
	}

	return fixedPoint(givers, receivers) < 0
}

// reject reshuffles from scratch until no fixed point remains.
func (g *Generator) reject(givers, receivers []string) bool {
	for pass := 0; pass < g.maxPasses(); pass++ {
		g.shuffle(receivers)

		if fixedPoint(givers, receivers) < 0 {
			return true
		}
	}

	return false
}

// shuffle is a Fisher-Yates shuffle.
func (g *Generator) shuffle(s []string) {
	r := g.source()
	for i := len(s) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}

func (g *Generator) source() Rand {
	if g.Rand == nil {
		g.Rand = newSource()
	}

	return g.Rand
}

func (g *Generator) maxPasses() int {
	if g.MaxPasses <= 0 {
		return DefaultMaxPasses
	}

	return g.MaxPasses
}

// fixedPoint returns the first index where giver and receiver match, or -1.
func fixedPoint(givers, receivers []string) int {
	for i := range givers {
		if givers[i] == receivers[i] {
			return i
		}
	}

	return -1
}
