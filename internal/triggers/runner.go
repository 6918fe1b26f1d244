package triggers

import (
	"context"
	"fmt"

	"habitsAPI/internal/docstore"
	"habitsAPI/internal/types/notification"
)

// PushSender delivers a push notification to every device of a user.
type PushSender interface {
	Notify(ctx context.Context, push notification.Push) error
}

// Runner is the Handler for every job type.
type Runner struct {
	store docstore.Store
	push  PushSender
}

func NewRunner(store docstore.Store, push PushSender) *Runner {
	return &Runner{store: store, push: push}
}

func (r *Runner) Handle(ctx context.Context, job Job) error {
	switch job.Type {
	case JobFriendRemove:
		if job.UID == "" || job.FriendUID == "" {
			return fmt.Errorf("job %s: missing uids", job.ID)
		}
		return RemoveFriendship(ctx, r.store, job.UID, job.FriendUID)
	case JobPush:
		if job.Push == nil {
			return fmt.Errorf("job %s: missing push payload", job.ID)
		}
		if r.push == nil {
			return nil
		}
		return r.push.Notify(ctx, *job.Push)
	}
	return fmt.Errorf("job %s: unknown type %q", job.ID, job.Type)
}
