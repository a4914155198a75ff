package health

// Strategy 成功率更新策略，rate 取值 0-100
type Strategy interface {
	Update(current float64, success bool) float64
}

// DecayStrategy 失败时按系数衰减，成功不回升，适合低频渠道
type DecayStrategy struct {
	Factor float64 // e.g. 0.95
}

func (d DecayStrategy) Update(current float64, success bool) float64 {
	if success {
		return current
	}
	return clamp(current * d.Factor)
}

// EWMAStrategy 趋势平滑
type EWMAStrategy struct {
	Alpha float64 // e.g. 0.1
}

func (e EWMAStrategy) Update(current float64, success bool) float64 {
	value := 0.0
	if success {
		value = 100
	}
	return clamp(e.Alpha*value + (1-e.Alpha)*current)
}

// SlidingStrategy 成功加 StepUp，失败减 StepDown
type SlidingStrategy struct {
	StepUp   float64
	StepDown float64
}

func (s SlidingStrategy) Update(current float64, success bool) float64 {
	if success {
		return clamp(current + s.StepUp)
	}
	return clamp(current - s.StepDown)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
