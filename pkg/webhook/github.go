// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package webhook receives GitHub pull request events and turns them into
// review runs.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/codeguardian-bot/codeguardian/pkg/platform"
)

// MaxPayloadSize bounds the request bodies the server reads.
const MaxPayloadSize = 10 * 1024 * 1024

// ErrInvalidSignature is returned when the X-Hub-Signature-256 header is
// missing or does not match the payload.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// EventType is the pull_request action that produced an event.
type EventType string

const (
	EventPROpened      EventType = "opened"
	EventPRSynchronize EventType = "synchronize"
	EventPRReopened    EventType = "reopened"
	EventPREdited      EventType = "edited"
)

func (e EventType) String() string {
	return string(e)
}

// Event is a pull request event that warrants a review.
type Event struct {
	Type    EventType
	Target  platform.Target
	HeadSHA string
	Sender  string
}

// githubPayload is the subset of the pull_request payload we read.
type githubPayload struct {
	Action      string `json:"action"`
	Number      int    `json:"number"`
	PullRequest struct {
		Number int `json:"number"`
		Head   struct {
			SHA string `json:"sha"`
		} `json:"head"`
	} `json:"pull_request"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Sender struct {
		Login string `json:"login"`
	} `json:"sender"`
}

// ParseGitHubEvent parses a delivery. It returns nil without error for
// events that do not trigger a review: pings, other event types and
// pull_request actions such as closed or labeled. Edits count because the
// description is part of what gets scored.
func ParseGitHubEvent(data []byte, eventType string) (*Event, error) {
	if eventType != "pull_request" {
		return nil, nil
	}

	var payload githubPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse GitHub payload: %w", err)
	}

	switch t := EventType(payload.Action); t {
	case EventPROpened, EventPRSynchronize, EventPRReopened, EventPREdited:
		number := payload.PullRequest.Number
		if number == 0 {
			number = payload.Number
		}
		target := platform.Target{Repository: payload.Repository.FullName, Number: number}
		if err := target.Validate(); err != nil {
			return nil, fmt.Errorf("invalid pull_request payload: %w", err)
		}
		return &Event{
			Type:    t,
			Target:  target,
			HeadSHA: payload.PullRequest.Head.SHA,
			Sender:  payload.Sender.Login,
		}, nil
	}
	return nil, nil
}

// VerifySignature checks a "sha256=<hex>" signature of payload.
func VerifySignature(payload []byte, header, secret string) error {
	hexSig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return ErrInvalidSignature
	}
	got, err := hex.DecodeString(hexSig)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(got, Sign(payload, secret)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the HMAC-SHA256 of payload.
func Sign(payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}
