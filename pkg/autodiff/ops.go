package autodiff

import "math"

func binary(
	a, b *Node,
	f func(x, y float64) float64,
	df func(x, y, g float64) (float64, float64),
) *Node {
	var t = sameTape(a, b)
	var size = broadcastLen(len(a.Value), len(b.Value))
	var value = make([]float64, size)
	for i := range value {
		value[i] = f(a.Value[index(len(a.Value), i)], b.Value[index(len(b.Value), i)])
	}
	var out = t.newNode(value)
	out.backward = func() {
		for i, g := range out.Grad {
			var ia = index(len(a.Value), i)
			var ib = index(len(b.Value), i)
			var da, db = df(a.Value[ia], b.Value[ib], g)
			a.Grad[ia] += da
			b.Grad[ib] += db
		}
	}
	return out
}

// unary builds an elementwise node; df receives the input x and the output y.
func unary(a *Node, f func(x float64) float64, df func(x, y float64) float64) *Node {
	var value = make([]float64, len(a.Value))
	for i, x := range a.Value {
		value[i] = f(x)
	}
	var out = a.tape.newNode(value)
	out.backward = func() {
		for i, g := range out.Grad {
			a.Grad[i] += g * df(a.Value[i], out.Value[i])
		}
	}
	return out
}

func Add(a, b *Node) *Node {
	return binary(a, b,
		func(x, y float64) float64 { return x + y },
		func(x, y, g float64) (float64, float64) { return g, g })
}

func Sub(a, b *Node) *Node {
	return binary(a, b,
		func(x, y float64) float64 { return x - y },
		func(x, y, g float64) (float64, float64) { return g, -g })
}

func Mul(a, b *Node) *Node {
	return binary(a, b,
		func(x, y float64) float64 { return x * y },
		func(x, y, g float64) (float64, float64) { return g * y, g * x })
}

func Div(a, b *Node) *Node {
	return binary(a, b,
		func(x, y float64) float64 { return x / y },
		func(x, y, g float64) (float64, float64) { return g / y, -g * x / (y * y) })
}

// Scale multiplies every element by the constant c.
func Scale(a *Node, c float64) *Node {
	return unary(a,
		func(x float64) float64 { return c * x },
		func(x, y float64) float64 { return c })
}

// Shift adds the constant c to every element.
func Shift(a *Node, c float64) *Node {
	return unary(a,
		func(x float64) float64 { return x + c },
		func(x, y float64) float64 { return 1 })
}

func Neg(a *Node) *Node {
	return Scale(a, -1)
}

func Square(a *Node) *Node {
	return unary(a,
		func(x float64) float64 { return x * x },
		func(x, y float64) float64 { return 2 * x })
}

func Sigmoid(a *Node) *Node {
	return unary(a,
		SigmoidValue,
		func(x, y float64) float64 { return y * (1 - y) })
}

// Abs is |x|; the derivative at 0 is taken as 0.
func Abs(a *Node) *Node {
	return unary(a,
		math.Abs,
		func(x, y float64) float64 {
			switch {
			case x > 0:
				return 1
			case x < 0:
				return -1
			}
			return 0
		})
}

// ClampMin0 is max(0, x); the derivative at 0 is taken as 0.
func ClampMin0(a *Node) *Node {
	return unary(a,
		func(x float64) float64 {
			if x > 0 {
				return x
			}
			return 0
		},
		func(x, y float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		})
}

func Sum(a *Node) *Node {
	var s float64
	for _, x := range a.Value {
		s += x
	}
	var out = a.tape.newNode([]float64{s})
	out.backward = func() {
		var g = out.Grad[0]
		for i := range a.Grad {
			a.Grad[i] += g
		}
	}
	return out
}

func Mean(a *Node) *Node {
	return Scale(Sum(a), 1/float64(len(a.Value)))
}

// SigmoidValue is the logistic function, written so that neither branch overflows.
func SigmoidValue(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	var e = math.Exp(x)
	return e / (1 + e)
}
