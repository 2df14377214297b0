package quadrature

// Legendre evaluates the Legendre polynomial L_n and its derivative at x
// using the three-term recurrence.
func Legendre(n int, x float64) (p, dp float64) {
	if n == 0 {
		return 1, 0
	}
	p0, p1 := 1.0, x
	for k := 2; k <= n; k++ {
		fk := float64(k)
		p0, p1 = p1, ((2*fk-1)*x*p1-(fk-1)*p0)/fk
	}
	p = p1
	switch {
	case x == 1:
		dp = float64(n*(n+1)) / 2
	case x == -1:
		dp = float64(n*(n+1)) / 2
		if n%2 == 0 {
			dp = -dp
		}
	default:
		dp = float64(n) * (x*p1 - p0) / (x*x - 1)
	}
	return
}
