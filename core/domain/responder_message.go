package domain

import (
	"strings"
	"time"
)

// MessageStatus tracks how far the pipeline advanced for a message.
type MessageStatus string

const (
	StatusPending           MessageStatus = "pending"
	StatusClassified        MessageStatus = "classified"
	StatusNoResponseNeeded  MessageStatus = "no_response_needed"
	StatusResponseGenerated MessageStatus = "response_generated"
)

// RawMessage is a transport-level message as returned by the mail provider.
// It carries no persistence identity; the pipeline promotes it to an
// IncomingMessage on first sight.
type RawMessage struct {
	ExternalID string
	ThreadID   string
	From       string
	FromName   string
	To         string
	Subject    string
	BodyText   string
	BodyHTML   string
	Snippet    string
	IsUnread   bool
	ReceivedAt time.Time
}

// IncomingMessage is the persisted record of a received message.
// Created once per external identifier, then only status fields change.
type IncomingMessage struct {
	ID               string
	ExternalID       string
	ThreadID         string
	Account          string
	Sender           string
	SenderName       string
	Subject          string
	BodyText         string
	BodyHTML         string
	Status           MessageStatus
	NeedsHumanReview bool
	IsRead           bool
	ReceivedAt       time.Time
	ProcessedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SenderFirstName returns the first word of the display name, falling back
// to the local part of the address. Used for reply personalization.
func (m *IncomingMessage) SenderFirstName() string {
	name := strings.TrimSpace(m.SenderName)
	if name == "" {
		name, _, _ = strings.Cut(m.Sender, "@")
	}
	first, _, _ := strings.Cut(name, " ")
	return first
}
