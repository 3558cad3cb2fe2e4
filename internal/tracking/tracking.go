// Package tracking records email opens and clicks against send records
// and emits the corresponding analytics events.
//
// Tracking URLs carry the send id in a base64 payload signed with
// HMAC-SHA256; a request with a bad signature is rejected before any
// store access. Recording is idempotent: only the first open (or click)
// of a send sets the timestamp and produces an analytics event.
package tracking

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eventpulse/engage/internal/domain"
	"github.com/eventpulse/engage/internal/store"
)

// Errors returned when a tracking request cannot be trusted or parsed.
var (
	ErrBadSignature = errors.New("invalid tracking signature")
	ErrBadPayload   = errors.New("invalid tracking payload")
)

// Service signs outgoing tracking URLs and records incoming hits.
type Service struct {
	store      store.Store
	signingKey []byte
	baseURL    string
}

// New creates a tracking service. baseURL is the public origin tracking
// links point at, without a trailing slash.
func New(s store.Store, signingKey, baseURL string) *Service {
	return &Service{
		store:      s,
		signingKey: []byte(signingKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// PixelURL returns the signed 1x1 pixel URL embedded in an email body to
// detect opens.
func (s *Service) PixelURL(sendID uuid.UUID) string {
	data := sendID.String()
	encoded := base64.URLEncoding.EncodeToString([]byte(data))
	return fmt.Sprintf("%s/track/open/%s/%s", s.baseURL, encoded, s.sign(data))
}

// ClickURL wraps a destination link in a signed redirect that records the
// click before forwarding.
func (s *Service) ClickURL(sendID uuid.UUID, destination string) string {
	data := fmt.Sprintf("%s|%s", sendID, destination)
	encoded := base64.URLEncoding.EncodeToString([]byte(data))
	return fmt.Sprintf("%s/track/click/%s/%s", s.baseURL, encoded, s.sign(data))
}

func (s *Service) sign(data string) string {
	h := hmac.New(sha256.New, s.signingKey)
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func (s *Service) verify(data, signature string) bool {
	expected := s.sign(data)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// HandleOpen verifies and records an open hit from a pixel request.
func (s *Service) HandleOpen(ctx context.Context, encoded, signature string) error {
	decoded, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return ErrBadPayload
	}
	data := string(decoded)
	if !s.verify(data, signature) {
		return ErrBadSignature
	}

	sendID, err := uuid.Parse(data)
	if err != nil {
		return ErrBadPayload
	}
	return s.RecordOpen(ctx, sendID, time.Now())
}

// HandleClick verifies and records a click hit, returning the destination
// URL to redirect to. The destination is returned even when recording
// fails so the reader still lands on the link.
func (s *Service) HandleClick(ctx context.Context, encoded, signature string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrBadPayload
	}
	data := string(decoded)
	if !s.verify(data, signature) {
		return "", ErrBadSignature
	}

	parts := strings.SplitN(data, "|", 2)
	if len(parts) != 2 {
		return "", ErrBadPayload
	}
	sendID, err := uuid.Parse(parts[0])
	if err != nil {
		return "", ErrBadPayload
	}
	destination := parts[1]

	if err := s.RecordClick(ctx, sendID, time.Now()); err != nil {
		return destination, err
	}
	return destination, nil
}

// RecordOpen sets the send's opened timestamp. Only the first call for a
// send performs the transition and emits an email_open analytics event;
// repeats are silent no-ops.
func (s *Service) RecordOpen(ctx context.Context, sendID uuid.UUID, at time.Time) error {
	transitioned, err := s.store.MarkSendOpened(ctx, sendID, at)
	if err != nil {
		return fmt.Errorf("marking send opened: %w", err)
	}
	if !transitioned {
		return nil
	}
	return s.emit(ctx, sendID, domain.AnalyticsEmailOpen, at)
}

// RecordClick sets the send's clicked timestamp, with the same
// first-transition-only semantics as RecordOpen.
func (s *Service) RecordClick(ctx context.Context, sendID uuid.UUID, at time.Time) error {
	transitioned, err := s.store.MarkSendClicked(ctx, sendID, at)
	if err != nil {
		return fmt.Errorf("marking send clicked: %w", err)
	}
	if !transitioned {
		return nil
	}
	return s.emit(ctx, sendID, domain.AnalyticsEmailClick, at)
}

// emit writes the analytics event for a send that just transitioned.
func (s *Service) emit(ctx context.Context, sendID uuid.UUID, typ domain.AnalyticsEventType, at time.Time) error {
	snd, err := s.store.GetSend(ctx, sendID)
	if err != nil {
		return fmt.Errorf("loading send: %w", err)
	}
	ev := &domain.AnalyticsEvent{
		ID:         uuid.New(),
		Type:       typ,
		AttendeeID: &snd.AttendeeID,
		CampaignID: &snd.CampaignID,
		Metadata:   map[string]string{"send_id": sendID.String()},
		CreatedAt:  at,
	}
	if err := s.store.CreateAnalyticsEvent(ctx, ev); err != nil {
		return fmt.Errorf("recording analytics event: %w", err)
	}
	return nil
}
