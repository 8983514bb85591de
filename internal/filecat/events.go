package filecat

// EventName is the name of a push event as seen by connected clients.
type EventName string

const (
	EventFileMoved         EventName = "fileMoved"
	EventJobUpdated        EventName = "jobUpdated"
	EventJobCompleted      EventName = "jobCompleted"
	EventCategoryRefreshed EventName = "categoryRefreshed"
)

// Event is one state change broadcast to clients. Payload is one of the
// *Payload types below and is serialized as the event data.
type Event struct {
	Name    EventName
	Payload any
}

type FileMovedPayload struct {
	FileID     int64  `json:"fileId"`
	ResultText string `json:"resultText"`
}

type JobUpdatedPayload struct {
	Job *BatchJob `json:"job"`
}

type JobCompletedPayload struct {
	ResultText string    `json:"resultText"`
	Result     *BatchJob `json:"result"`
}

type CategoryRefreshedPayload struct {
	Categories []string `json:"categories"`
}

// Publisher delivers events to whoever is listening. Publish must not block
// on slow consumers.
type Publisher interface {
	Publish(event Event)
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

var _ Publisher = NopPublisher{}
