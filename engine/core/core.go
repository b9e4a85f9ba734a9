package core

// ID is an opaque identifier assigned by the remote service.
type ID string

func (i ID) String() string {
	return string(i)
}

// JobStatus is the remote lifecycle state of a transcription job.
type JobStatus string

const (
	JobStatusQueued      JobStatus = "queued"
	JobStatusProcessing  JobStatus = "processing"
	JobStatusTranscribed JobStatus = "transcribed"
	JobStatusFailed      JobStatus = "failed"
)

// Ready reports whether the transcript is available so spike generation
// can start.
func (s JobStatus) Ready() bool {
	return s == JobStatusTranscribed
}

// Terminal reports whether the remote job can make no further progress.
func (s JobStatus) Terminal() bool {
	return s == JobStatusTranscribed || s == JobStatusFailed
}
