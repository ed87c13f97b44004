package model

// Phase 搜索阶段
type Phase string

const (
	PhaseBeam Phase = "beam"
	PhaseCSP  Phase = "csp"
)

// Progress 搜索进度事件
type Progress struct {
	Phase     Phase   `json:"phase"`
	Iteration int     `json:"iteration"`
	Date      string  `json:"date,omitempty"`
	BestScore float64 `json:"best_score"`
	Unfilled  int     `json:"unfilled"`
}

// Notify 非阻塞发送进度；通道为空或已满时丢弃
func Notify(ch chan<- Progress, p Progress) {
	if ch == nil {
		return
	}
	select {
	case ch <- p:
	default:
	}
}
