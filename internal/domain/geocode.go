package domain

// BestMatch returns the first address of a reverse geocoding result. An empty
// list is ErrNoAddressFound, never a zero Address.
func BestMatch(addresses []Address) (Address, error) {
	if len(addresses) == 0 {
		return Address{}, ErrNoAddressFound
	}
	return addresses[0], nil
}
