package pack

// Xorshift32 is Marsaglia's 13/17/5 generator over 32-bit state. The
// emitted Lua decoder performs the same three steps with bit32.
type Xorshift32 uint32

// Next advances the state and returns it.
func (x *Xorshift32) Next() uint32 {
	s := uint32(*x)
	s ^= s << 13
	s ^= s >> 17
	s ^= s << 5
	*x = Xorshift32(s)
	return s
}
