/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package derangement

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
)

// identityRand makes every Fisher-Yates step a no-op, so the shuffle leaves
// the receivers in giver order and every index starts as a fixed point.
type identityRand struct{}

func (identityRand) IntN(n int) int { return n - 1 }

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x5eed))
}

func names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("person-%02d", i)
	}
	return out
}

func assertDerangement(t *testing.T, input []string, mapping map[string]string) {
	t.Helper()

	if len(mapping) != len(input) {
		t.Fatalf("expected %d entries, got %d", len(input), len(mapping))
	}

	received := make(map[string]int, len(input))
	for _, name := range input {
		receiver, ok := mapping[name]
		if !ok {
			t.Fatalf("expected %q to be a giver", name)
		}
		if receiver == name {
			t.Fatalf("expected no self-assignment, %q gives to themselves", name)
		}
		received[receiver]++
	}

	for _, name := range input {
		if received[name] != 1 {
			t.Fatalf("expected %q to receive exactly once, got %d", name, received[name])
		}
	}
}

func TestGenerateProducesDerangement(t *testing.T) {
	for _, uniform := range []bool{false, true} {
		for n := 2; n <= 40; n++ {
			for seed := uint64(0); seed < 25; seed++ {
				g := &Generator{Rand: seeded(seed), Uniform: uniform}
				input := names(n)

				mapping, err := g.Generate(input)
				if err != nil {
					t.Fatalf("uniform=%v n=%d seed=%d: generate: %v", uniform, n, seed, err)
				}
				assertDerangement(t, input, mapping)
			}
		}
	}
}

func TestGenerateTwoParticipants(t *testing.T) {
	for seed := uint64(0); seed < 10; seed++ {
		g := &Generator{Rand: seeded(seed)}

		mapping, err := g.Generate([]string{"A", "B"})
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if mapping["A"] != "B" || mapping["B"] != "A" {
			t.Fatalf("expected A->B and B->A, got %v", mapping)
		}
	}
}

func TestGenerateTwoParticipantsSingleSwap(t *testing.T) {
	g := &Generator{Rand: identityRand{}, MaxPasses: 1}

	mapping, err := g.Generate([]string{"A", "B"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if mapping["A"] != "B" || mapping["B"] != "A" {
		t.Fatalf("expected A->B and B->A, got %v", mapping)
	}
}

func TestGenerateInsufficientParticipants(t *testing.T) {
	cases := map[string][]string{
		"nil":    nil,
		"empty":  {},
		"single": {"Alice"},
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			mapping, err := Generate(input)
			if !errors.Is(err, ErrInsufficientParticipants) {
				t.Fatalf("expected insufficient participants, got %v", err)
			}
			if mapping != nil {
				t.Fatalf("expected nil mapping, got %v", mapping)
			}
		})
	}
}

func TestGenerateRejectsDuplicates(t *testing.T) {
	_, err := Generate([]string{"Alice", "Bob", "Alice"})
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected duplicate name error, got %v", err)
	}
}

func TestGenerateBudgetExhausted(t *testing.T) {
	g := &Generator{Rand: identityRand{}, MaxPasses: 1}

	mapping, err := g.Generate([]string{"A", "B", "C", "D"})
	if !errors.Is(err, ErrDerangementFailed) {
		t.Fatalf("expected derangement failure, got %v", err)
	}
	if mapping != nil {
		t.Fatalf("expected nil mapping, got %v", mapping)
	}
}

func TestGenerateUniformBudgetExhausted(t *testing.T) {
	g := &Generator{Rand: identityRand{}, MaxPasses: 5, Uniform: true}

	_, err := g.Generate([]string{"A", "B", "C"})
	if !errors.Is(err, ErrDerangementFailed) {
		t.Fatalf("expected derangement failure, got %v", err)
	}
}

func TestRepairFromIdentity(t *testing.T) {
	input := names(9)
	g := &Generator{Rand: identityRand{}}

	mapping, err := g.Generate(input)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	assertDerangement(t, input, mapping)
}

func TestPairsKeepGiverOrder(t *testing.T) {
	input := []string{"Carol", "Alice", "Bob", "Dave"}
	g := &Generator{Rand: seeded(7)}

	pairs, err := g.Pairs(input)
	if err != nil {
		t.Fatalf("pairs: %v", err)
	}
	if len(pairs) != len(input) {
		t.Fatalf("expected %d pairs, got %d", len(input), len(pairs))
	}
	for i, p := range pairs {
		if p.Giver != input[i] {
			t.Fatalf("expected giver %q at %d, got %q", input[i], i, p.Giver)
		}
	}
}

func TestGenerateDoesNotModifyInput(t *testing.T) {
	input := []string{"Alice", "Bob", "Carol"}
	want := append([]string(nil), input...)

	if _, err := Generate(input); err != nil {
		t.Fatalf("generate: %v", err)
	}
	for i := range want {
		if input[i] != want[i] {
			t.Fatalf("expected input unchanged, got %v", input)
		}
	}
}

func TestGenerateDeterministicForSeed(t *testing.T) {
	input := names(12)

	first, err := (&Generator{Rand: seeded(42)}).Generate(input)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := (&Generator{Rand: seeded(42)}).Generate(input)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	for giver, receiver := range first {
		if second[giver] != receiver {
			t.Fatalf("expected same mapping for same seed, %q got %q and %q", giver, receiver, second[giver])
		}
	}
}

func TestZeroGeneratorSeedsItself(t *testing.T) {
	var g Generator

	mapping, err := g.Generate([]string{"Alice", "Bob", "Carol"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	assertDerangement(t, []string{"Alice", "Bob", "Carol"}, mapping)
}

func TestGeneratorConcurrentUse(t *testing.T) {
	g := New()
	input := names(15)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			mapping, err := g.Generate(input)
			if err != nil {
				errs <- err
				return
			}
			for giver, receiver := range mapping {
				if giver == receiver {
					errs <- fmt.Errorf("%q assigned to themselves", giver)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent generate: %v", err)
	}
}
