package jobsystem

import (
	"slices"
)

// quantile estimates a single quantile of a stream of observations, in
// constant space, using the P-Square algorithm (Jain and Chlamtac, 1985).
//
// Not thread-safe.
type quantile struct {
	// heights of the five markers
	q [5]float64
	// actual positions of the markers
	n [5]int
	// desired positions of the markers
	np [5]float64
	// increments of the desired positions
	dn    [5]float64
	p     float64
	count int
}

func newQuantile(p float64) *quantile {
	p = min(max(p, 0), 1)
	return &quantile{
		p:  p,
		dn: [5]float64{0, p / 2, p, (1 + p) / 2, 1},
	}
}

func (x *quantile) observe(v float64) {
	x.count++

	if x.count <= 5 {
		// the markers are seeded by the first five observations
		x.q[x.count-1] = v
		if x.count == 5 {
			slices.Sort(x.q[:])
			for i := range x.n {
				x.n[i] = i
			}
			x.np = [5]float64{0, 2 * x.p, 4 * x.p, 2 + 2*x.p, 4}
		}
		return
	}

	var k int
	switch {
	case v < x.q[0]:
		x.q[0] = v
	case v >= x.q[4]:
		x.q[4] = v
		k = 3
	default:
		for k < 3 && v >= x.q[k+1] {
			k++
		}
	}

	for i := k + 1; i < 5; i++ {
		x.n[i]++
	}
	for i := range x.np {
		x.np[i] += x.dn[i]
	}

	for i := 1; i < 4; i++ {
		d := x.np[i] - float64(x.n[i])
		if (d >= 1 && x.n[i+1]-x.n[i] > 1) || (d <= -1 && x.n[i-1]-x.n[i] < -1) {
			sign := 1
			if d < 0 {
				sign = -1
			}
			if h := x.parabolic(i, sign); x.q[i-1] < h && h < x.q[i+1] {
				x.q[i] = h
			} else {
				x.q[i] = x.linear(i, sign)
			}
			x.n[i] += sign
		}
	}
}

func (x *quantile) parabolic(i, sign int) float64 {
	d := float64(sign)
	n, nPrev, nNext := float64(x.n[i]), float64(x.n[i-1]), float64(x.n[i+1])
	return x.q[i] + d/(nNext-nPrev)*
		((n-nPrev+d)*(x.q[i+1]-x.q[i])/(nNext-n)+
			(nNext-n-d)*(x.q[i]-x.q[i-1])/(n-nPrev))
}

func (x *quantile) linear(i, sign int) float64 {
	return x.q[i] + float64(sign)*(x.q[i+sign]-x.q[i])/float64(x.n[i+sign]-x.n[i])
}

// value returns the current estimate.
func (x *quantile) value() float64 {
	switch {
	case x.count == 0:
		return 0
	case x.count < 5:
		sorted := slices.Clone(x.q[:x.count])
		slices.Sort(sorted)
		return sorted[int(float64(x.count-1)*x.p)]
	default:
		return x.q[2]
	}
}
