package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeInvitationPublish = "invitation:publish"
)

// InvitationPublishPayload 描述发布请柬所需的最小信息。
type InvitationPublishPayload struct {
	InvitationID  uint   `json:"invitation_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewInvitationPublishTask 构造一个新的请柬发布任务。
func NewInvitationPublishTask(id uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(InvitationPublishPayload{
		InvitationID:  id,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeInvitationPublish, payload), nil
}
