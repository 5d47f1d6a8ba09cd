package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeAPIKeyPurgeExpired = "apikey:purge:expired"
)

type PurgeExpiredPayload struct{}

func NewPurgeExpiredTask(opts ...asynq.Option) (*asynq.Task, error) {
	payload := PurgeExpiredPayload{}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	uniqueOpt := asynq.Unique(10 * time.Minute)
	allOpts := append(opts, uniqueOpt)

	return asynq.NewTask(TypeAPIKeyPurgeExpired, payloadBytes, allOpts...), nil
}
