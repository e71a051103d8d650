package domain

// Scale is a coarse size class of a network, used only to pick visual and
// physics defaults
type Scale string

const (
	ScaleCase9   Scale = "case9"
	ScaleCase14  Scale = "case14"
	ScaleCase30  Scale = "case30"
	ScaleCase39  Scale = "case39"
	ScaleCase57  Scale = "case57"
	ScaleCase118 Scale = "case118"
	ScaleCustom  Scale = "custom"
)

var scaleThresholds = []struct {
	max   int
	scale Scale
}{
	{9, ScaleCase9},
	{14, ScaleCase14},
	{30, ScaleCase30},
	{39, ScaleCase39},
	{57, ScaleCase57},
	{118, ScaleCase118},
}

// ScaleFor classifies a network by its node count
func ScaleFor(nodeCount int) Scale {
	for _, t := range scaleThresholds {
		if nodeCount <= t.max {
			return t.scale
		}
	}
	return ScaleCustom
}

// Scales lists the named scales from smallest to largest
func Scales() []Scale {
	out := make([]Scale, 0, len(scaleThresholds)+1)
	for _, t := range scaleThresholds {
		out = append(out, t.scale)
	}
	return append(out, ScaleCustom)
}
