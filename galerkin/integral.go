package galerkin

import (
	"github.com/notargets/hprbs/basis"
	"github.com/notargets/hprbs/element"
)

// Integral is a bilinear form evaluated on two bases sampled on the same
// quadrature grid.
type Integral interface {
	Integrate(p, q basis.Eval, mat element.Materials) float64
	String() string
}

// CurlCurl is (1/Re mu) * integral of curl p * curl q.
type CurlCurl struct{}

func (CurlCurl) Integrate(p, q basis.Eval, mat element.Materials) float64 {
	var sum float64
	for k, w := range p.W {
		sum += w * p.Curl[k] * q.Curl[k]
	}
	return sum / real(mat.MuRel)
}

func (CurlCurl) String() string { return "curl_curl" }

// L2Inner is Re eps * integral of p . q.
type L2Inner struct{}

func (L2Inner) Integrate(p, q basis.Eval, mat element.Materials) float64 {
	var sum float64
	for k, w := range p.W {
		sum += w * (p.Ex[k]*q.Ex[k] + p.Ey[k]*q.Ey[k])
	}
	return sum * real(mat.EpsRel)
}

func (L2Inner) String() string { return "l2_inner" }
