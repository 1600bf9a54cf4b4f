package sim

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind identifies the protocol operation a message belongs to.
type Kind int

const (
	KindAgentAccess Kind = iota
	KindFilteredAgentsAccess
	KindEnvironmentAccess
	KindUpdateCoordinatorAgents
	KindAllWorkersFinishTick
	KindAllWorkersUpdateCoordinator
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindAgentAccess:
		return "agent_access"
	case KindFilteredAgentsAccess:
		return "filtered_agents_access"
	case KindEnvironmentAccess:
		return "environment_access"
	case KindUpdateCoordinatorAgents:
		return "update_coordinator_agents"
	case KindAllWorkersFinishTick:
		return "all_workers_finish_tick"
	case KindAllWorkersUpdateCoordinator:
		return "all_workers_update_coordinator"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// IsBarrier reports whether k is one of the two barrier kinds.
func (k Kind) IsBarrier() bool {
	return k == KindAllWorkersFinishTick || k == KindAllWorkersUpdateCoordinator
}

// RequestBody is the payload of a request. The set of implementations is closed.
type RequestBody interface {
	Kind() Kind
	isRequestBody()
}

// AgentAccess asks for one agent by name.
type AgentAccess struct {
	Target string
}

// FilteredAgentsAccess asks for every agent matching Filter.
type FilteredAgentsAccess struct {
	Filter Filter
}

// EnvironmentAccess asks for the shared environment.
type EnvironmentAccess struct{}

// UpdateCoordinatorAgents pushes a worker's agents. It has no response.
type UpdateCoordinatorAgents struct {
	Agents *AgentContainer
}

// AllWorkersFinishTick announces the sender finished computing a tick.
type AllWorkersFinishTick struct {
	Tick int
}

// AllWorkersUpdateCoordinator announces the sender pushed its agents for a tick.
type AllWorkersUpdateCoordinator struct {
	Tick int
}

func (AgentAccess) Kind() Kind { return KindAgentAccess }
func (FilteredAgentsAccess) Kind() Kind { return KindFilteredAgentsAccess }
func (EnvironmentAccess) Kind() Kind { return KindEnvironmentAccess }
func (UpdateCoordinatorAgents) Kind() Kind { return KindUpdateCoordinatorAgents }
func (AllWorkersFinishTick) Kind() Kind { return KindAllWorkersFinishTick }
func (AllWorkersUpdateCoordinator) Kind() Kind { return KindAllWorkersUpdateCoordinator }

func (AgentAccess) isRequestBody() {}
func (FilteredAgentsAccess) isRequestBody() {}
func (EnvironmentAccess) isRequestBody() {}
func (UpdateCoordinatorAgents) isRequestBody() {}
func (AllWorkersFinishTick) isRequestBody() {}
func (AllWorkersUpdateCoordinator) isRequestBody() {}

// ResponseBody is the payload of a response. The set of implementations is closed.
type ResponseBody interface {
	Kind() Kind
	isResponseBody()
}

// AgentReply answers AgentAccess. Agent is nil when the name is unknown.
type AgentReply struct {
	Agent *Agent
}

// FilteredAgentsReply answers FilteredAgentsAccess.
type FilteredAgentsReply struct {
	Agents *AgentContainer
}

// EnvironmentReply answers EnvironmentAccess.
type EnvironmentReply struct {
	Environment *Environment
}

// BarrierRelease releases one waiter of a barrier.
type BarrierRelease struct {
	Barrier Kind
	Tick    int
}

func (AgentReply) Kind() Kind { return KindAgentAccess }
func (FilteredAgentsReply) Kind() Kind { return KindFilteredAgentsAccess }
func (EnvironmentReply) Kind() Kind { return KindEnvironmentAccess }
func (r BarrierRelease) Kind() Kind { return r.Barrier }

func (AgentReply) isResponseBody() {}
func (FilteredAgentsReply) isResponseBody() {}
func (EnvironmentReply) isResponseBody() {}
func (BarrierRelease) isResponseBody() {}

// Request travels from a worker to the coordinator.
type Request struct {
	ID          string
	Requester   string
	Destination string
	Body        RequestBody
}

// NewRequest creates a request from requester to destination.
func NewRequest(requester, destination string, body RequestBody) Request {
	return Request{
		ID:          uuid.New().String(),
		Requester:   requester,
		Destination: destination,
		Body:        body,
	}
}

// Kind returns the kind of the request body.
func (r Request) Kind() Kind {
	return r.Body.Kind()
}

// Response travels from the coordinator to a worker.
type Response struct {
	ID          string
	RequestID   string
	Requester   string
	Destination string
	Body        ResponseBody
}

// NewResponse creates a response from the coordinator addressed to destination.
func NewResponse(coordinator, destination, requestID string, body ResponseBody) Response {
	return Response{
		ID:          uuid.New().String(),
		RequestID:   requestID,
		Requester:   coordinator,
		Destination: destination,
		Body:        body,
	}
}

// Kind returns the kind of the response body.
func (r Response) Kind() Kind {
	return r.Body.Kind()
}

// For reports whether r is the response a waiter named dest expects for kind.
func (r Response) For(dest string, kind Kind) bool {
	return r.Destination == dest && r.Kind() == kind
}
