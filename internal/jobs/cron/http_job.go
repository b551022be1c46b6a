package cron

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPJob triggers a sub-job that lives behind an HTTP endpoint. Any 2xx
// response is success.
type HTTPJob struct {
	JobName string
	URL     string
	Method  string
	// Secret, when set, is sent as a bearer token.
	Secret     string
	JobTimeout time.Duration
	Client     *http.Client
}

func (j *HTTPJob) Name() string { return j.JobName }

func (j *HTTPJob) Timeout() time.Duration { return j.JobTimeout }

func (j *HTTPJob) Run(ctx context.Context) error {
	method := strings.ToUpper(strings.TrimSpace(j.Method))
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, j.URL, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", j.JobName, err)
	}
	if j.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+j.Secret)
	}
	req.Header.Set("User-Agent", "orgdesk-cron")

	client := j.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", j.JobName, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: status %d: %s", j.JobName, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// ParseHTTPJobs reads "name=url" pairs, the form CRON_HTTP_JOBS uses.
func ParseHTTPJobs(pairs []string, secret string, timeout time.Duration) ([]*HTTPJob, error) {
	out := make([]*HTTPJob, 0, len(pairs))
	for _, p := range pairs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		name, url, ok := strings.Cut(p, "=")
		name, url = strings.TrimSpace(name), strings.TrimSpace(url)
		if !ok || name == "" || url == "" {
			return nil, fmt.Errorf("bad cron job %q: want name=url", p)
		}
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return nil, fmt.Errorf("bad cron job %q: url must be http(s)", p)
		}
		out = append(out, &HTTPJob{JobName: name, URL: url, Secret: secret, JobTimeout: timeout})
	}
	return out, nil
}
