package backend

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/holyc-lang/holycc/internal/runtimeshim"
)

// abiConstraint is the runtime ABI major version this build of the
// compiler was written against. Per spec §6.4 the linked/interpreted
// runtime advertises its version through hc_runtime_abi_version(); a
// runtime whose major version doesn't satisfy this constraint is
// rejected before a JIT install or AOT link rather than left to fail
// with a confusing symbol mismatch later.
const abiConstraint = "^1.0.0"

var parsedAbiConstraint = mustConstraint(abiConstraint)

func mustConstraint(c string) *semver.Constraints {
	parsed, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}

	return parsed
}

// checkRuntimeAbi verifies the embedded/linked runtime's advertised
// version satisfies abiConstraint, failing closed rather than trusting a
// runtime built against an incompatible ABI.
func checkRuntimeAbi() error {
	v, err := semver.NewVersion(runtimeshim.AbiVersionString)
	if err != nil {
		return fmt.Errorf("parse runtime abi version %q: %w", runtimeshim.AbiVersionString, err)
	}

	if !parsedAbiConstraint.Check(v) {
		return fmt.Errorf("runtime abi version %s does not satisfy %s", v, abiConstraint)
	}

	return nil
}
