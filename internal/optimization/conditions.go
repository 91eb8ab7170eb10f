package optimization

import "math"

// Step-acceptance conditions along a line φ(t) = f(x0 + t·d), written in
// terms of φ(t), φ(0), φ'(t) and φ'(0). The notation follows CG_DESCENT.

// Armijo checks the sufficient decrease condition φ(t) ≤ φ(0) + t·c1·φ'(0).
func Armijo(phi, phi0, t, c1, gphi0 float64) bool {
	return phi <= phi0+t*c1*gphi0
}

// Wolfe checks the curvature condition φ'(t) ≥ c2·φ'(0).
func Wolfe(gphi, gphi0, c2 float64) bool {
	return gphi >= c2*gphi0
}

// StrongWolfe checks the strong curvature condition |φ'(t)| ≤ c2·|φ'(0)|.
func StrongWolfe(gphi, gphi0, c2 float64) bool {
	return math.Abs(gphi) <= c2*math.Abs(gphi0)
}

// ApproxArmijo checks the relaxed decrease condition φ(t) ≤ φ(0) + ε.
func ApproxArmijo(phi, phi0, epsilon float64) bool {
	return phi <= phi0+epsilon
}

// ApproxWolfe checks the approximate Wolfe conditions
// (2c1−1)·φ'(0) ≥ φ'(t) ≥ c2·φ'(0) and φ(t) ≤ φ(0) + ε.
func ApproxWolfe(phi, phi0, gphi, gphi0, c1, c2, epsilon float64) bool {
	return (2*c1-1)*gphi0 >= gphi &&
		gphi >= c2*gphi0 &&
		ApproxArmijo(phi, phi0, epsilon)
}
