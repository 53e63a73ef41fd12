package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/communitystats/statspipe/pkg/logger"
)

const healthcheckTimeout = 10 * time.Second

// PingHealthcheck reports the run outcome to a healthchecks.io style
// endpoint. Exit code zero pings the bare URL, anything else appends the
// code so the monitor records the failure reason. A missing URL or a failed
// ping never affects the run itself.
func PingHealthcheck(ctx context.Context, baseURL string, exitCode int) {
	if baseURL == "" {
		return
	}

	url := baseURL
	if exitCode != ExitSuccess {
		url = fmt.Sprintf("%s/%d", baseURL, exitCode)
	}

	ctx, cancel := context.WithTimeout(ctx, healthcheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logger.WithError(err).Warn("Healthcheck ping skipped")
		return
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		logger.WithError(err).Warn("Healthcheck ping failed")
		return
	}
	resp.Body.Close()

	logger.Debugf("Healthcheck pinged (%d)", resp.StatusCode)
}
