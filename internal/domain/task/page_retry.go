package task

type PageRetryTask struct {
	PageNumber int    `json:"page_number"` // Failed page number
	RetryCount int    `json:"retry_count"` // Number of attempts so far
	Error      string `json:"error"`       // Error message from the last failure
}

func (t *PageRetryTask) TaskType() string {
	return TypePageRetry
}

func (t *PageRetryTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
