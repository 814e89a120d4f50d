package model

// CommandEnvelope is the payload published to Kafka for the command worker.
type CommandEnvelope struct {
	ID   string `json:"id"`   // envelope uuid
	From string `json:"from"` // relay sender address
	Text string `json:"text"`
}
