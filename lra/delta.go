package lra

import "math/big"

// deltaRat represents a + b*delta for a symbolic infinitesimal delta > 0,
// the standard device (Dutertre & de Moura) for letting a rational-valued
// Simplex tableau distinguish strict from non-strict bounds without ever
// picking a concrete delta until a model is actually requested. Comparisons
// are lexicographic: the 'a' component decides unless it ties, in which
// case the sign of 'b' decides.
type deltaRat struct {
	a, b *big.Rat
}

func ratOf(r *big.Rat) deltaRat { return deltaRat{a: new(big.Rat).Set(r), b: new(big.Rat)} }

func ratZero() deltaRat { return deltaRat{a: new(big.Rat), b: new(big.Rat)} }

// strictUpper builds the bound value for "x < v": x must stay at or below
// v minus an infinitesimal.
func strictUpper(v *big.Rat) deltaRat {
	return deltaRat{a: new(big.Rat).Set(v), b: big.NewRat(-1, 1)}
}

// strictLower builds the bound value for "x > v".
func strictLower(v *big.Rat) deltaRat {
	return deltaRat{a: new(big.Rat).Set(v), b: big.NewRat(1, 1)}
}

func (d deltaRat) add(o deltaRat) deltaRat {
	return deltaRat{a: new(big.Rat).Add(d.a, o.a), b: new(big.Rat).Add(d.b, o.b)}
}

func (d deltaRat) sub(o deltaRat) deltaRat {
	return deltaRat{a: new(big.Rat).Sub(d.a, o.a), b: new(big.Rat).Sub(d.b, o.b)}
}

// addScaled returns d + c*o for a plain rational scale factor c.
func (d deltaRat) addScaled(c *big.Rat, o deltaRat) deltaRat {
	return deltaRat{
		a: new(big.Rat).Add(d.a, new(big.Rat).Mul(c, o.a)),
		b: new(big.Rat).Add(d.b, new(big.Rat).Mul(c, o.b)),
	}
}

// divByRat returns d/c for a nonzero plain rational c.
func (d deltaRat) divByRat(c *big.Rat) deltaRat {
	inv := new(big.Rat).Inv(c)
	return deltaRat{a: new(big.Rat).Mul(d.a, inv), b: new(big.Rat).Mul(d.b, inv)}
}

func (d deltaRat) cmp(o deltaRat) int {
	if c := d.a.Cmp(o.a); c != 0 {
		return c
	}
	return d.b.Cmp(o.b)
}

func (d deltaRat) lessEq(o deltaRat) bool { return d.cmp(o) <= 0 }
func (d deltaRat) greaterEq(o deltaRat) bool { return d.cmp(o) >= 0 }

// resolve substitutes a concrete positive delta and returns the resulting
// rational value.
func (d deltaRat) resolve(delta *big.Rat) *big.Rat {
	return new(big.Rat).Add(d.a, new(big.Rat).Mul(d.b, delta))
}
