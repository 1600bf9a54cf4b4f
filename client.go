package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Client is a worker's synchronous view of the coordinator protocol.
// Each worker owns exactly one Client; it is not safe for concurrent use
// because responses are correlated by worker name and kind only.
type Client struct {
	name           string
	coordinator    string
	bus            *Bus
	synced         bool
	requestTimeout time.Duration
	barrierTimeout time.Duration
	logger         *slog.Logger

	// abandoned holds IDs of requests whose wait ended before the answer came
	abandoned map[string]struct{}
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRequestTimeout bounds point queries. Zero waits forever.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.requestTimeout = d
	}
}

// WithBarrierTimeout bounds barrier waits. Zero waits forever.
func WithBarrierTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.barrierTimeout = d
	}
}

// WithClientLogger sets the client logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates the client for worker name. When synced is false every
// barrier is a no-op and every read returns ErrNotSynchronized.
func NewClient(name, coordinator string, bus *Bus, synced bool, opts ...ClientOption) *Client {
	c := &Client{
		name:        name,
		coordinator: coordinator,
		bus:         bus,
		synced:      synced,
		logger:      slog.Default(),
		abandoned:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the worker name the client sends as requester.
func (c *Client) Name() string {
	return c.name
}

// Synced reports whether the client talks to a coordinator.
func (c *Client) Synced() bool {
	return c.synced
}

// WaitUntilAllWorkersFinishTick blocks until every worker finished tick.
func (c *Client) WaitUntilAllWorkersFinishTick(ctx context.Context, tick int) error {
	return c.barrier(ctx, AllWorkersFinishTick{Tick: tick})
}

// WaitUntilAllWorkersUpdateCoordinator blocks until every worker pushed its
// agents for tick and the coordinator ran the environment.
func (c *Client) WaitUntilAllWorkersUpdateCoordinator(ctx context.Context, tick int) error {
	return c.barrier(ctx, AllWorkersUpdateCoordinator{Tick: tick})
}

// GetAgent fetches an agent from the coordinator's global view.
func (c *Client) GetAgent(ctx context.Context, target string) (*Agent, error) {
	resp, err := c.call(ctx, AgentAccess{Target: target})
	if err != nil {
		return nil, err
	}
	reply, ok := resp.Body.(AgentReply)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedResponse, resp.Body)
	}
	if reply.Agent == nil {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, target)
	}
	return reply.Agent, nil
}

// GetFilteredAgents fetches every agent of the global view matching f.
func (c *Client) GetFilteredAgents(ctx context.Context, f Filter) (*AgentContainer, error) {
	resp, err := c.call(ctx, FilteredAgentsAccess{Filter: f})
	if err != nil {
		return nil, err
	}
	reply, ok := resp.Body.(FilteredAgentsReply)
	if !ok || reply.Agents == nil {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedResponse, resp.Body)
	}
	return reply.Agents, nil
}

// GetEnvironment fetches the coordinator's environment.
func (c *Client) GetEnvironment(ctx context.Context) (*Environment, error) {
	resp, err := c.call(ctx, EnvironmentAccess{})
	if err != nil {
		return nil, err
	}
	reply, ok := resp.Body.(EnvironmentReply)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedResponse, resp.Body)
	}
	return reply.Environment, nil
}

// PushAgents sends agents to the coordinator without waiting for an answer.
func (c *Client) PushAgents(agents *AgentContainer) {
	if !c.synced {
		return
	}
	c.bus.Requests.Put(NewRequest(c.name, c.coordinator, UpdateCoordinatorAgents{Agents: agents}))
}

func (c *Client) barrier(ctx context.Context, body RequestBody) error {
	if !c.synced {
		return nil
	}

	c.logger.Debug("client: barrier wait", "worker", c.name, "barrier", body.Kind())
	_, err := c.roundTrip(ctx, body, c.barrierTimeout)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %s", ErrBarrierTimeout, body.Kind())
	}
	return err
}

func (c *Client) call(ctx context.Context, body RequestBody) (Response, error) {
	if !c.synced {
		return Response{}, ErrNotSynchronized
	}

	resp, err := c.roundTrip(ctx, body, c.requestTimeout)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return Response{}, fmt.Errorf("%w: %s", ErrRequestTimeout, body.Kind())
	}
	return resp, err
}

// roundTrip sends body and takes the first response addressed to this
// worker with the same kind. Responses for other workers stay queued.
// Answers to requests that were abandoned earlier are dropped.
func (c *Client) roundTrip(ctx context.Context, body RequestBody, timeout time.Duration) (Response, error) {
	c.purgeAbandoned()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	kind := body.Kind()
	req := NewRequest(c.name, c.coordinator, body)
	c.bus.Requests.Put(req)

	for {
		resp, err := c.bus.Responses.TakeMatch(ctx, func(r Response) bool {
			return r.For(c.name, kind)
		})
		if err != nil {
			c.abandoned[req.ID] = struct{}{}
			return Response{}, err
		}
		if resp.RequestID != "" && resp.RequestID != req.ID {
			delete(c.abandoned, resp.RequestID)
			c.logger.Debug("client: dropping stale response", "worker", c.name, "kind", kind, "request_id", resp.RequestID)
			continue
		}
		return resp, nil
	}
}

// purgeAbandoned removes queued answers to abandoned requests. An answer that
// has not arrived yet stays on the list and is removed by a later call.
func (c *Client) purgeAbandoned() {
	if len(c.abandoned) == 0 {
		return
	}
	n := c.bus.Responses.Remove(func(r Response) bool {
		if r.Destination != c.name {
			return false
		}
		if _, ok := c.abandoned[r.RequestID]; !ok {
			return false
		}
		delete(c.abandoned, r.RequestID)
		return true
	})
	if n > 0 {
		c.logger.Debug("client: purged stale responses", "worker", c.name, "count", n)
	}
}

// Pending returns how many abandoned requests may still be answered.
func (c *Client) Pending() int {
	return len(c.abandoned)
}
