package job

// Answer asks the answering worker to produce one assistant reply for the
// triggering user message. JobID identifies the trigger so duplicate
// deliveries can be told apart in logs.
type Answer struct {
	JobID     string `json:"job_id"`
	ChatID    uint   `json:"chat_id"`
	MessageID uint   `json:"message_id"`
	Question  string `json:"question"`
}

// Ingest asks the ingest worker to index an uploaded file into the vector
// store.
type Ingest struct {
	JobID  string `json:"job_id"`
	FileID uint   `json:"file_id"`
}
