package spawn

// LCG 32 位线性同余生成器（Numerical Recipes 参数）。
// 所有 peer 用同一 seed 得到完全相同的序列，不依赖平台 math/rand 实现。
type LCG struct {
	state uint32
}

const (
	lcgA = 1664525
	lcgC = 1013904223
)

func NewLCG(seed uint32) *LCG {
	return &LCG{state: seed}
}

// Seed 重新播种
func (g *LCG) Seed(seed uint32) {
	g.state = seed
}

func (g *LCG) Next() uint32 {
	g.state = g.state*lcgA + lcgC
	return g.state
}

// Float64 返回 [0,1)
func (g *LCG) Float64() float64 {
	return float64(g.Next()) / 4294967296.0
}

// Range 返回 [lo,hi)
func (g *LCG) Range(lo, hi float64) float64 {
	return lo + g.Float64()*(hi-lo)
}

// Intn 返回 [0,n)，n<=0 时返回 0
func (g *LCG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(g.Float64() * float64(n))
}
