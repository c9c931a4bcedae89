package capability

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/latticekit/lattice/internal/extension"
)

// LinkMaps is the result of applying a link function across every
// implementer of a contract.
type LinkMaps struct {
	// Forward maps unit name to the link result.
	Forward map[string]string

	// Reverse maps a link result back to the unit that produced it.
	Reverse map[string]*extension.Unit
}

// linkTTL bounds how long applied link maps are memoized. The snapshot
// generation is part of the key, so a rebuild naturally invalidates.
const linkTTL = 10 * time.Minute

// ApplyLinks invokes the named link function on every implementer of the
// contract and builds the forward and reverse maps. A unit whose link is
// missing, errors, panics, or returns nothing usable is skipped with one
// logged warning; the failure never propagates to the caller.
//
// Results are memoized keyed by (snapshot generation, contract, link name).
func (ix *Index) ApplyLinks(ctx context.Context, contract, linkName string) (LinkMaps, error) {
	snap := ix.Snapshot()
	key := fmt.Sprintf("links:%d:%s:%s", snap.Generation(), contract, linkName)

	cached, err := ix.memo.GetOrCompute(ctx, key, linkTTL, func() (interface{}, error) {
		return ix.applyLinks(snap, contract, linkName), nil
	})
	if err != nil {
		return LinkMaps{}, err
	}

	maps, ok := cached.(LinkMaps)
	if !ok {
		// A foreign cache backend may round-trip through serialization;
		// recompute rather than guess at the decoded shape.
		return ix.applyLinks(snap, contract, linkName), nil
	}
	return maps, nil
}

func (ix *Index) applyLinks(snap *Snapshot, contract, linkName string) LinkMaps {
	maps := LinkMaps{
		Forward: make(map[string]string),
		Reverse: make(map[string]*extension.Unit),
	}

	for _, unit := range snap.Units(contract) {
		target, ok := ix.applyLink(unit, linkName)
		if !ok {
			ix.log.Warn("skipping misconfigured capability link",
				zap.String("contract", contract),
				zap.String("link", linkName),
				zap.String("unit", unit.Name),
			)
			continue
		}
		maps.Forward[unit.Name] = target
		maps.Reverse[target] = unit
	}

	return maps
}

// applyLink runs one link function, converting every failure mode (missing
// link, error, empty result, panic) into a plain non-ok.
func (ix *Index) applyLink(unit *extension.Unit, linkName string) (target string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			target, ok = "", false
		}
	}()

	fn, ok := unit.Link(linkName)
	if !ok {
		return "", false
	}

	target, err := fn()
	if err != nil || target == "" {
		return "", false
	}
	return target, true
}
