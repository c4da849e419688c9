/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIOptions configures the OpenAI-compatible translator.
type OpenAIOptions struct {
	APIKey      string
	Model       string
	BaseURL     string // empty uses the public endpoint
	Temperature float32
	Timeout     time.Duration
}

// OpenAI translates through a chat-completions endpoint.
type OpenAI struct {
	client *openai.Client
	opts   OpenAIOptions
}

// NewOpenAI creates an OpenAI translator.
func NewOpenAI(opts OpenAIOptions) (*OpenAI, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai: API key is required")
	}
	if opts.Model == "" {
		opts.Model = openai.GPT4oMini
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), opts: opts}, nil
}

// Translate sends one passage as a single user message.
func (o *OpenAI) Translate(ctx context.Context, text, style string) (string, error) {
	callCtx := ctx
	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}
	req := openai.ChatCompletionRequest{
		Model: o.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: BuildPrompt(text, style),
			},
		},
		Temperature: o.opts.Temperature,
	}
	resp, err := o.client.CreateChatCompletion(callCtx, req)
	if err != nil {
		return "", callError(ctx, openAIStatus(err), err)
	}
	if len(resp.Choices) == 0 {
		return "", Transient(ErrEmptyResponse)
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", Permanent(fmt.Errorf("response stopped: %s", choice.FinishReason))
	}
	out := cleanResponse(choice.Message.Content)
	if out == "" {
		return "", Transient(ErrEmptyResponse)
	}
	return out, nil
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
