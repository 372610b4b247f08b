// Package queue ставит задачи генерации контента в очередь RabbitMQ и
// обрабатывает их фоновым консьюмером.
package queue

// GenerationEvent - сообщение очереди генерации. JobID отсылает к
// Job.JobID (внешний идентификатор), не к первичному ключу.
type GenerationEvent struct {
	JobID  string `json:"job_id"`
	UserID string `json:"user_id"`
	Action string `json:"action"` // generate | regenerate
}

const (
	ActionGenerate   = "generate"
	ActionRegenerate = "regenerate"
)

// retryCountHeader хранит число уже сделанных повторов доставки
const retryCountHeader = "x-retry-count"
