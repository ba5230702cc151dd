package consensus

import "fmt"

// resolveAddress turns an Address into the key it designates, resolving
// name addresses through state.Names. A name that doesn't resolve is a
// MissingData error, never a panic, since it can occur during validation
// of untrusted input.
func resolveAddress(addr Address, state *ChainState) ([32]byte, error) {
	switch addr.Tag {
	case AddressKey:
		return addr.Key, nil
	case AddressName:
		k, ok := state.Names[addr.Name]
		if !ok {
			return [32]byte{}, missingDataErr(fmt.Sprintf("name %q is not registered", addr.Name))
		}
		return k, nil
	default:
		return [32]byte{}, missingDataErr("address has an unrecognized tag")
	}
}

// mustResolveAddress is resolveAddress for Apply/Revert, where the address
// has already been validated to resolve. A miss here is a programmer
// error: the caller handed apply/revert a block that never passed
// ValidateBlock.
func mustResolveAddress(addr Address, state *ChainState) [32]byte {
	k, err := resolveAddress(addr, state)
	if err != nil {
		panic(err)
	}
	return k
}
