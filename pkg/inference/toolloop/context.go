package toolloop

import (
	"context"

	"github.com/go-go-golems/shepherd/pkg/conversation"
)

const (
	PhasePreInference  = "pre_inference"
	PhasePostInference = "post_inference"
	PhasePostTools     = "post_tools"
)

// SnapshotHook captures the transcript of a run at defined phases (pre/post
// inference, post tools). Hooks must not modify the conversation.
type SnapshotHook func(ctx context.Context, c conversation.Conversation, phase string)
