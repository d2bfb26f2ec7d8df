package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/locationup/locationup-go/internal/notifications"
	pkgerrors "github.com/locationup/locationup-go/pkg/errors"
	"github.com/locationup/locationup-go/pkg/logger"
	"github.com/locationup/locationup-go/pkg/metrics"
)

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = 3 * time.Second
	defaultMaxDelay    = 30 * time.Second

	eventBuffer            = 32
	responseBodyErrorLimit = 1024
)

// ErrConnectionLost terminates a subscription once reconnect attempts are
// exhausted; the caller may retry manually via Reconnect.
var ErrConnectionLost = pkgerrors.New(pkgerrors.CodeExhausted, "connection lost after repeated attempts")

// State describes a subscription's connection lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client maintains at most one live notification stream per instance. The
// most recent Connect call wins; earlier subscriptions are torn down first.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	logg        *logger.Logger
	metricset   *metrics.StreamMetrics
	api         *notifications.Client
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	now         func() time.Time

	mu      sync.Mutex
	current *Subscription
	userID  string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client. The client must not set
// an overall timeout; the stream connection is long-lived.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		if logg != nil {
			c.logg = logg
		}
	}
}

// WithMetrics attaches stream metrics collectors.
func WithMetrics(m *metrics.StreamMetrics) Option {
	return func(c *Client) {
		if m != nil {
			c.metricset = m
		}
	}
}

// WithAPIClient wires the backend REST client used by the outbound send
// operations.
func WithAPIClient(api *notifications.Client) Option {
	return func(c *Client) {
		c.api = api
	}
}

// WithBackoff overrides the reconnect delay schedule.
func WithBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.baseDelay = base
		}
		if max > 0 {
			c.maxDelay = max
		}
	}
}

// WithMaxAttempts overrides how many consecutive failures are tolerated.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// NewClient builds a stream client for the given stream base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stream base url is required")
	}

	client := &Client{
		baseURL:     trimmed,
		httpClient:  &http.Client{},
		logg:        logger.New(logger.Options{ServiceName: "stream", Output: io.Discard}),
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Connect opens a notification stream scoped to userID and returns the
// subscription handle. Any prior subscription is closed first.
func (c *Client) Connect(userID string) (*Subscription, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		client: c,
		userID: trimmed,
		ctx:    ctx,
		cancel: cancel,
		events: make(chan notifications.Record, eventBuffer),
		done:   make(chan struct{}),
		state:  StateDisconnected,
	}

	c.mu.Lock()
	prev := c.current
	c.current = sub
	c.userID = trimmed
	c.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	go sub.run()
	return sub, nil
}

// Disconnect closes the active subscription, if any. When clearUser is true
// the remembered user is forgotten so stale reconnects cannot resurrect the
// stream for them.
func (c *Client) Disconnect(clearUser bool) {
	c.mu.Lock()
	sub := c.current
	c.current = nil
	if clearUser {
		c.userID = ""
	}
	c.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

// Reconnect reopens the stream for the remembered user after a terminal
// failure.
func (c *Client) Reconnect() (*Subscription, error) {
	user := c.currentUser()
	if user == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no user to reconnect; call Connect first")
	}
	return c.Connect(user)
}

// SendTest asks the backend to push a canned notification to the connected
// user. Calling without an established user is a caller error: logged,
// aborted, and invisible to stream subscribers.
func (c *Client) SendTest(ctx context.Context) error {
	user := c.currentUser()
	if user == "" {
		c.logg.Warn(ctx, "send-test called without an established user")
		return pkgerrors.New(pkgerrors.CodeValidation, "no connected user")
	}
	if c.api == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification api client not configured")
	}
	return c.api.SendTest(ctx, user)
}

// SendCustom pushes a custom notification to the connected user.
func (c *Client) SendCustom(ctx context.Context, message, severity string) error {
	user := c.currentUser()
	if user == "" {
		c.logg.Warn(ctx, "send-custom called without an established user")
		return pkgerrors.New(pkgerrors.CodeValidation, "no connected user")
	}
	if c.api == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification api client not configured")
	}
	return c.api.SendCustom(ctx, notifications.SendRequest{
		UserID:   user,
		Message:  message,
		Severity: severity,
	})
}

func (c *Client) currentUser() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// stillCurrent guards reconnect timers against supersession: a reconnect
// firing after Disconnect or a newer Connect must be a no-op.
func (c *Client) stillCurrent(sub *Subscription) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == sub && c.userID == sub.userID
}

func (c *Client) clearIfCurrent(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == sub {
		c.current = nil
	}
}

// reconnectDelay is the backoff schedule: linear in the attempt number,
// capped.
func reconnectDelay(attempt int, base, max time.Duration) time.Duration {
	delay := time.Duration(attempt) * base
	if delay > max {
		return max
	}
	return delay
}

// Subscription is a cancelable handle on one user's notification stream.
type Subscription struct {
	client *Client
	userID string
	ctx    context.Context
	cancel context.CancelFunc
	events chan notifications.Record
	done   chan struct{}

	mu    sync.Mutex
	state State
	err   error
}

// Events delivers normalized records in transport order. The channel closes
// when the subscription ends; check Err for the terminal cause.
func (s *Subscription) Events() <-chan notifications.Record {
	return s.events
}

// Done closes when the subscription has fully stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the terminal error, if any, once the subscription has ended.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// State reports the current connection state.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close cancels the subscription: the underlying connection is closed and
// any pending reconnect timer is abandoned. Safe to call more than once.
func (s *Subscription) Close() {
	s.cancel()
	s.client.clearIfCurrent(s)
}

func (s *Subscription) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.state = StateClosed
	s.mu.Unlock()
}

func (s *Subscription) run() {
	c := s.client
	ctx := c.logg.WithUserID(s.ctx, s.userID)

	defer func() {
		s.setStateIfNoError(StateClosed)
		close(s.events)
		close(s.done)
	}()

	attempts := 0
	for {
		if s.ctx.Err() != nil {
			return
		}

		s.setState(StateConnecting)
		opened, err := s.consume()
		if s.ctx.Err() != nil {
			return
		}
		if opened {
			attempts = 0
		}

		attempts++
		if attempts > c.maxAttempts {
			c.logg.Error(ctx, "notification stream lost", err)
			c.metricset.IncTerminal()
			s.fail(ErrConnectionLost)
			return
		}

		c.metricset.IncReconnect()
		delay := reconnectDelay(attempts, c.baseDelay, c.maxDelay)
		c.logg.Warn(c.logg.WithStream(ctx, s.userID, attempts), "stream interrupted, reconnecting in "+delay.String())

		timer := time.NewTimer(delay)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		timer.Stop()

		if !c.stillCurrent(s) {
			return
		}
	}
}

func (s *Subscription) setStateIfNoError(state State) {
	s.mu.Lock()
	if s.err == nil {
		s.state = state
	}
	s.mu.Unlock()
}

// consume opens the stream connection and pumps frames until it breaks.
// The first return value reports whether the connection opened successfully.
func (s *Subscription) consume() (bool, error) {
	c := s.client

	endpoint := c.baseURL + "/api/notifications/stream/" + url.PathEscape(s.userID)
	req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyErrorLimit))
		return false, fmt.Errorf("stream endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	s.setState(StateConnected)

	return true, readEvents(resp.Body, s.handleFrame)
}

func (s *Subscription) handleFrame(ev sseEvent) {
	c := s.client

	if !json.Valid([]byte(ev.data)) {
		c.metricset.IncMalformed()
	}
	record := notifications.Normalize([]byte(ev.data), s.userID, c.now())

	select {
	case s.events <- record:
		c.metricset.IncDelivered(string(record.Severity))
	case <-s.ctx.Done():
	}
}
