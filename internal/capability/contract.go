// Package capability discovers which code units implement which declared
// capability contracts, and caches the result in an immutable process-wide
// snapshot. Contracts are plain Go interfaces probed by type assertion;
// any component may contribute implementers of a contract it does not own.
package capability

import "go.uber.org/zap"

// Contract is a named capability an implementing unit may expose.
type Contract struct {
	// Name identifies the contract across the whole application.
	Name string

	// Probe reports whether a unit's implementation value satisfies the
	// contract. Typically built with ProbeFor.
	Probe func(interface{}) bool
}

// Declarer is the meta-contract: a unit implementing it contributes contract
// declarations to the registry. Only contracts declared by some loaded unit
// participate in the index.
type Declarer interface {
	DeclareContracts() []Contract
}

// ProbeFor builds a probe that checks implementation of the interface T.
func ProbeFor[T any]() func(interface{}) bool {
	return func(v interface{}) bool {
		_, ok := v.(T)
		return ok
	}
}

// safeProbe runs a probe, treating a panicking probe as a non-match.
func safeProbe(c Contract, impl interface{}, log *zap.Logger) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("contract probe panicked, treating as non-match",
				zap.String("contract", c.Name),
				zap.Any("panic", r),
			)
			matched = false
		}
	}()
	if c.Probe == nil {
		return false
	}
	return c.Probe(impl)
}
