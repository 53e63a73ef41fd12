package pipeline

import (
	"time"

	"github.com/communitystats/statspipe/internal/repositories"
	"github.com/communitystats/statspipe/internal/resources"
	"github.com/communitystats/statspipe/pkg/logger"
)

type trafficMarks interface {
	MaxTimestampByRepo() (map[string]time.Time, error)
}

type priorIssues interface {
	GetPriorState() (map[string]map[int]repositories.PriorIssueState, error)
}

// ComputeWatermark reads the incremental boundaries from the warehouse once,
// before any extraction starts. Extractors work against this snapshot and
// never query the warehouse mid-run.
func ComputeWatermark(traffic trafficMarks, issues priorIssues) (*resources.Watermark, error) {
	marks, err := traffic.MaxTimestampByRepo()
	if err != nil {
		return nil, err
	}

	prior, err := issues.GetPriorState()
	if err != nil {
		return nil, err
	}

	knownIssues := 0
	for _, byNumber := range prior {
		knownIssues += len(byNumber)
	}
	logger.WithFields(map[string]interface{}{
		"traffic_repos": len(marks),
		"known_issues":  knownIssues,
	}).Debug("Watermark computed")

	return &resources.Watermark{
		TrafficByRepo: marks,
		PriorIssues:   prior,
	}, nil
}
