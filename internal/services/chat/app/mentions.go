package server

import (
	"context"
	"errors"
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"

	chatdomain "github.com/taskdeck/taskdeck/internal/services/chat/domain"
)

// Text markers recognized inside message content when marker scanning is
// enabled. Handles are lowercase directory handles; task markers carry the
// short per-project task number.
var (
	handleMarkerPattern = regexp.MustCompile(`@([a-z0-9][a-z0-9_-]{0,31})`)
	taskMarkerPattern   = regexp.MustCompile(`#(\d{1,9})`)
)

// mentionExtractor resolves who a saved message mentions. Structured mention
// ids are always honored; text markers are scanned only when enabled.
type mentionExtractor struct {
	directory chatdomain.Directory
	markers   bool
}

func newMentionExtractor(directory chatdomain.Directory, markers bool) *mentionExtractor {
	return &mentionExtractor{directory: directory, markers: markers}
}

// mentionResult lists the resolved mention targets of one saved message.
type mentionResult struct {
	userIDs []string
	task    *chatdomain.TaskRef
}

// extract resolves the mention set of a saved message. Markers that resolve
// to no directory record are dropped silently. The sender never appears in
// the result, so self-mentions produce no notification.
func (e *mentionExtractor) extract(ctx context.Context, msg chatdomain.Message) mentionResult {
	if e == nil || e.directory == nil {
		return mentionResult{userIDs: nil, task: msg.Task}
	}

	seen := make(map[string]struct{})
	var userIDs []string
	add := func(userID string) {
		userID = strings.TrimSpace(userID)
		if userID == "" || userID == msg.SenderID {
			return
		}
		if _, ok := seen[userID]; ok {
			return
		}
		seen[userID] = struct{}{}
		userIDs = append(userIDs, userID)
	}

	for _, userID := range msg.MentionedUserIDs {
		add(userID)
	}

	result := mentionResult{task: msg.Task}
	if e.markers {
		for _, match := range handleMarkerPattern.FindAllStringSubmatch(msg.Content, -1) {
			user, err := e.directory.UserByHandle(ctx, match[1])
			if err != nil {
				if !errors.Is(err, chatdomain.ErrNotFound) {
					log.Printf("chat: skip mention marker @%s project=%q: %v", match[1], msg.ProjectID, err)
				}
				continue
			}
			add(user.ID)
		}
		if result.task == nil {
			for _, match := range taskMarkerPattern.FindAllStringSubmatch(msg.Content, -1) {
				number, err := strconv.Atoi(match[1])
				if err != nil {
					continue
				}
				task, err := e.directory.TaskByNumber(ctx, msg.ProjectID, number)
				if err != nil {
					if !errors.Is(err, chatdomain.ErrNotFound) {
						log.Printf("chat: skip task marker #%d project=%q: %v", number, msg.ProjectID, err)
					}
					continue
				}
				result.task = &task
				break
			}
		}
	}

	sort.Strings(userIDs)
	result.userIDs = userIDs
	return result
}
