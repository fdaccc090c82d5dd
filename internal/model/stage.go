package model

// Stage is the pipeline's position within a cycle. Values are ordered.
type Stage int

const (
	StageIdle Stage = iota
	StageFetch
	StageAnalyze
	StageConsolidate
	StageDiscuss
	StageCards
	StageCharts
	StageFollowUp
	StageVideo
	StageMarathon
)

var stageNames = [...]string{
	"idle",
	"fetch",
	"analyze",
	"consolidate",
	"discuss",
	"cards",
	"charts",
	"follow_up",
	"video",
	"marathon",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}
