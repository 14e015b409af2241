// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package util

import "context"

// MockPrompter is a scripted UserPrompter for tests. Each field
// queues answers consumed in order; an exhausted queue repeats its
// zero value. Calls are recorded in Prompts.
type MockPrompter struct {
	ConfirmAnswers []bool
	TokenAnswers   []bool
	SelectAnswers  []int
	SelectErr      error
	MultiAnswers   [][]int
	MultiErr       error

	Prompts []string
}

// Confirm pops the next scripted answer.
func (m *MockPrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	m.Prompts = append(m.Prompts, prompt)
	return popAnswer(&m.ConfirmAnswers), nil
}

// ConfirmToken pops the next scripted answer.
func (m *MockPrompter) ConfirmToken(ctx context.Context, prompt, token string) (bool, error) {
	m.Prompts = append(m.Prompts, prompt)
	return popAnswer(&m.TokenAnswers), nil
}

// Select pops the next scripted index, or returns SelectErr.
func (m *MockPrompter) Select(ctx context.Context, prompt string, options []string) (int, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.SelectErr != nil {
		return 0, m.SelectErr
	}
	return popAnswer(&m.SelectAnswers), nil
}

// MultiSelect pops the next scripted index set, or returns MultiErr.
func (m *MockPrompter) MultiSelect(ctx context.Context, prompt string, options []string) ([]int, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.MultiErr != nil {
		return nil, m.MultiErr
	}
	return popAnswer(&m.MultiAnswers), nil
}

func popAnswer[T any](queue *[]T) T {
	var zero T
	if len(*queue) == 0 {
		return zero
	}
	head := (*queue)[0]
	*queue = (*queue)[1:]
	return head
}

var _ UserPrompter = (*MockPrompter)(nil)
