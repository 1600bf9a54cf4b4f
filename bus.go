package sim

// Bus carries requests from workers to the coordinator and responses back.
type Bus struct {
	Requests  *Queue[Request]
	Responses *Queue[Response]
}

// NewBus creates a bus with two empty queues.
func NewBus() *Bus {
	return &Bus{
		Requests:  NewQueue[Request](),
		Responses: NewQueue[Response](),
	}
}
