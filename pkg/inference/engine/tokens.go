package engine

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/tiktoken-go/tokenizer"
)

// per-message framing overhead, as counted for chat models
const tokensPerTurn = 4

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
	codecErr  error
)

func getCodec() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return codec, codecErr
}

// CountTokens estimates the prompt size of a request: system prompt,
// every turn and the serialized tool schemas. The estimate uses cl100k for
// all backends; it is meant for budget checks, not billing.
func CountTokens(req Request) (int, error) {
	c, err := getCodec()
	if err != nil {
		return 0, errors.Wrap(err, "could not load tokenizer")
	}
	count := func(s string) (int, error) {
		if s == "" {
			return 0, nil
		}
		ids, _, err := c.Encode(s)
		if err != nil {
			return 0, err
		}
		return len(ids), nil
	}

	total, err := count(req.SystemPrompt)
	if err != nil {
		return 0, err
	}
	for _, turn := range req.Conversation {
		total += tokensPerTurn
		n, err := count(turn.Text)
		if err != nil {
			return 0, err
		}
		total += n
		for _, r := range turn.ToolRequests {
			n, err := count(r.Name + string(r.Arguments))
			if err != nil {
				return 0, err
			}
			total += n
		}
		for _, r := range turn.ToolResults {
			n, err := count(string(r.Payload))
			if err != nil {
				return 0, err
			}
			total += n
		}
	}
	for _, def := range req.Tools {
		schema, err := def.SchemaJSON()
		if err != nil {
			return 0, err
		}
		n, err := count(def.Name + def.Description + string(schema))
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// CheckTokenBudget fails with a limit_exceeded AdapterError when the request
// is estimated above budget. A budget <= 0 disables the check.
func CheckTokenBudget(provider string, req Request, budget int) error {
	if budget <= 0 {
		return nil
	}
	n, err := CountTokens(req)
	if err != nil {
		return err
	}
	if n > budget {
		return NewAdapterError(provider, ErrorKindLimitExceeded,
			errorf("prompt is about %d tokens, budget is %d", n, budget))
	}
	return nil
}
