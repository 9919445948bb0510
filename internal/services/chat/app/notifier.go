package server

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/taskdeck/taskdeck/internal/platform/timeouts"
	notifdomain "github.com/taskdeck/taskdeck/internal/services/notifications/domain"
)

// MentionContext describes one mention event handed to the notifier.
type MentionContext struct {
	ProjectID   string
	ProjectName string
	MessageID   string
	SenderID    string
	SenderName  string
	Excerpt     string
	TaskID      string
	TaskTitle   string
}

// MentionNotifier delivers mention notifications to collaborator services.
// Delivery is fire-and-forget from the room's perspective; failures must
// never affect message persistence or broadcast.
type MentionNotifier interface {
	NotifyMentioned(ctx context.Context, userIDs []string, mention MentionContext) error
}

type mentionJob struct {
	userIDs []string
	mention MentionContext
}

// mentionDispatcher delivers mention notifications asynchronously so a slow
// notifier never blocks a room broadcast.
type mentionDispatcher struct {
	notifier MentionNotifier
	jobs     chan mentionJob
	stop     context.CancelFunc
	done     chan struct{}
}

const defaultMentionQueueSize = 128

func startMentionDispatcher(notifier MentionNotifier, queueSize int) *mentionDispatcher {
	if notifier == nil {
		return nil
	}
	if queueSize <= 0 {
		queueSize = defaultMentionQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &mentionDispatcher{
		notifier: notifier,
		jobs:     make(chan mentionJob, queueSize),
		stop:     cancel,
		done:     make(chan struct{}),
	}
	go d.run(ctx)
	return d
}

func (d *mentionDispatcher) run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			// Drain jobs already queued before shutdown.
			for {
				select {
				case job := <-d.jobs:
					d.dispatch(job)
				default:
					return
				}
			}
		case job := <-d.jobs:
			d.dispatch(job)
		}
	}
}

func (d *mentionDispatcher) dispatch(job mentionJob) {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.NotifyDispatch)
	defer cancel()
	if err := d.notifier.NotifyMentioned(ctx, job.userIDs, job.mention); err != nil {
		log.Printf("chat: notify mentioned users failed project=%q message=%q: %v", job.mention.ProjectID, job.mention.MessageID, err)
	}
}

// enqueue hands one mention event to the dispatcher without blocking the
// caller. Events are dropped when the queue is full.
func (d *mentionDispatcher) enqueue(userIDs []string, mention MentionContext) {
	if d == nil || len(userIDs) == 0 {
		return
	}
	select {
	case d.jobs <- mentionJob{userIDs: userIDs, mention: mention}:
	default:
		log.Printf("chat: mention queue full, drop notification project=%q message=%q", mention.ProjectID, mention.MessageID)
	}
}

// close stops the dispatcher after it drains jobs already queued.
func (d *mentionDispatcher) close() {
	if d == nil {
		return
	}
	d.stop()
	<-d.done
}

// inboxNotifier writes mention notifications into the in-process
// notifications inbox.
type inboxNotifier struct {
	inbox *notifdomain.Service
}

func (n *inboxNotifier) NotifyMentioned(ctx context.Context, userIDs []string, mention MentionContext) error {
	if n == nil || n.inbox == nil {
		return errors.New("notifications inbox is not configured")
	}
	payload := notifdomain.NewMentionPayload(
		mention.MessageID,
		mention.ProjectID,
		mention.ProjectName,
		mention.SenderID,
		mention.SenderName,
		mention.Excerpt,
	)
	payload.TaskID = mention.TaskID
	payload.TaskTitle = mention.TaskTitle
	encoded, err := payload.Encode()
	if err != nil {
		return fmt.Errorf("encode mention payload: %w", err)
	}

	var firstErr error
	for _, userID := range userIDs {
		_, err := n.inbox.CreateIntent(ctx, notifdomain.CreateIntentInput{
			RecipientUserID: userID,
			Topic:           notifdomain.TopicChatMention,
			PayloadJSON:     encoded,
			DedupeKey:       notifdomain.MentionDedupeKey(mention.MessageID),
			Source:          "chat",
		})
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("create mention notification for user %s: %w", userID, err)
		}
	}
	return firstErr
}
