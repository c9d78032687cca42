package worker

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces out page fetches per host so a report citing many articles
// from one news site does not hammer it. A nil *Limiter never waits; one built
// with a non-positive rate only waits for hosts given a crawl delay.
type Limiter struct {
	mu    sync.Mutex
	hosts map[string]*rate.Limiter
	rps   rate.Limit
	burst int
	off   bool
}

// NewLimiter creates a limiter allowing requestsPerSecond per host with the given burst
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		hosts: make(map[string]*rate.Limiter),
		rps:   rate.Limit(requestsPerSecond),
		burst: burst,
		off:   requestsPerSecond <= 0,
	}
}

// Wait blocks until a request to rawURL's host may start
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	if l == nil {
		return ctx.Err()
	}
	host, err := hostOf(rawURL)
	if err != nil {
		return err
	}
	return l.forHost(host).Wait(ctx)
}

// SetCrawlDelay slows a host down to one request per delay when that is
// stricter than the default rate. Robots.txt Crawl-delay values land here.
func (l *Limiter) SetCrawlDelay(rawURL string, delay time.Duration) {
	if l == nil || delay <= 0 {
		return
	}
	host, err := hostOf(rawURL)
	if err != nil {
		return
	}

	limit := rate.Every(delay)
	lim := l.forHost(host)
	if lim.Limit() <= limit {
		return
	}
	lim.SetLimit(limit)
	lim.SetBurst(1)
}

// Hosts returns the number of hosts seen so far
func (l *Limiter) Hosts() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hosts)
}

func (l *Limiter) forHost(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.hosts[host]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		if l.off {
			lim = rate.NewLimiter(rate.Inf, 1)
		}
		l.hosts[host] = lim
	}
	return lim
}

// hostOf keys limits by lower-cased host name, ignoring port and a leading "www."
func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("no host in %q", rawURL)
	}
	return strings.TrimPrefix(host, "www."), nil
}
