// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/foundersday/platform/pkg/retry"
	"github.com/foundersday/platform/services/registration/datatypes"
	"github.com/foundersday/platform/services/registration/observability"
	"github.com/foundersday/platform/services/registration/storage"
)

// Publisher pushes events onto the live dashboard feed. The websocket
// hub implements it; a nil publisher drops feed events.
type Publisher interface {
	Publish(event datatypes.FeedEvent)
}

// Processor applies verified webhook deliveries to the domain:
// settling registrations, releasing holds, and recording payment traces
// for analytics.
//
// Errors it returns are classified for the worker pool: retry.Permanent
// wraps failures that redelivery cannot fix (malformed payloads,
// replayed transitions), everything else is retryable.
type Processor struct {
	store     *storage.Store
	metrics   *observability.Metrics
	publisher Publisher
	logger    *slog.Logger
}

// NewProcessor wires a processor. metrics and publisher may be nil.
func NewProcessor(store *storage.Store, metrics *observability.Metrics, publisher Publisher, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:     store,
		metrics:   metrics,
		publisher: publisher,
		logger:    logger,
	}
}

// Process handles one delivery. Unknown event types are acknowledged as
// no-ops so new Square event families never poison the queue.
func (p *Processor) Process(ctx context.Context, env Envelope) error {
	switch {
	case strings.HasPrefix(env.Type, "payment."):
		return p.processPayment(ctx, env)
	case strings.HasPrefix(env.Type, "refund."):
		return p.processRefund(ctx, env)
	case strings.HasPrefix(env.Type, "payout."), strings.HasPrefix(env.Type, "dispute."):
		return p.recordOnly(ctx, env)
	default:
		p.logger.Debug("ignoring webhook event type",
			slog.String("event_id", env.EventID),
			slog.String("type", env.Type))
		return nil
	}
}

// =============================================================================
// Square Payloads
// =============================================================================

// dataEnvelope is the inner data block of a Square delivery.
type dataEnvelope struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Object struct {
		Payment *paymentObject `json:"payment,omitempty"`
		Refund  *refundObject  `json:"refund,omitempty"`
		Payout  *payoutObject  `json:"payout,omitempty"`
		Dispute *disputeObject `json:"dispute,omitempty"`
	} `json:"object"`
}

type money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// paymentObject carries the fields we use from a Square payment.
// ReferenceID is set to the registration id at checkout time.
type paymentObject struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ReferenceID string `json:"reference_id"`
	AmountMoney money  `json:"amount_money"`
}

type refundObject struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	PaymentID   string `json:"payment_id"`
	Reason      string `json:"reason"`
	AmountMoney money  `json:"amount_money"`
}

type payoutObject struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	AmountMoney money  `json:"amount_money"`
}

type disputeObject struct {
	ID            string `json:"id"`
	State         string `json:"state"`
	DisputedMoney money  `json:"amount_money"`
}

func decodeData(env Envelope) (dataEnvelope, error) {
	var data dataEnvelope
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return data, retry.Permanent(fmt.Errorf("decode %s data: %w", env.Type, err))
	}
	return data, nil
}

// =============================================================================
// Payments
// =============================================================================

func (p *Processor) processPayment(ctx context.Context, env Envelope) error {
	data, err := decodeData(env)
	if err != nil {
		return err
	}
	payment := data.Object.Payment
	if payment == nil || payment.ID == "" {
		return retry.Permanent(fmt.Errorf("%s event %s has no payment object", env.Type, env.EventID))
	}

	record := datatypes.PaymentRecord{
		PaymentID:      payment.ID,
		WebhookEventID: env.EventID,
		RegistrationID: payment.ReferenceID,
		Kind:           "payment",
		Status:         payment.Status,
		AmountCents:    payment.AmountMoney.Amount,
		Currency:       payment.AmountMoney.Currency,
	}
	if err := p.store.RecordPayment(ctx, record); err != nil {
		return fmt.Errorf("record payment %s: %w", payment.ID, err)
	}

	switch payment.Status {
	case "COMPLETED":
		return p.settlePayment(ctx, payment)
	case "FAILED", "CANCELED":
		return p.failPayment(ctx, payment)
	default:
		// APPROVED and PENDING precede a later update; nothing to apply.
		return nil
	}
}

// settlePayment moves the registration to paid and issues a ticket.
func (p *Processor) settlePayment(ctx context.Context, payment *paymentObject) error {
	if payment.ReferenceID == "" {
		return retry.Permanent(fmt.Errorf("payment %s has no reference_id", payment.ID))
	}

	ticketSeq, err := p.store.IncrCounter(ctx, "tickets_issued", 1)
	if err != nil {
		return fmt.Errorf("issue ticket number: %w", err)
	}
	now := time.Now().UTC()

	reg, err := p.store.TransitionRegistration(ctx, payment.ReferenceID, datatypes.RegistrationPaid,
		func(r *datatypes.Registration) {
			r.SquarePaymentID = payment.ID
			r.TicketNumber = fmt.Sprintf("FD-%06d", ticketSeq)
			r.PaidAt = &now
		})
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// The registration write can lag the webhook; let redelivery win.
		return fmt.Errorf("registration %s not found yet: %w", payment.ReferenceID, err)
	case errors.Is(err, storage.ErrInvalidTransition):
		// Already settled (or cancelled out from under the payment): the
		// transition table has spoken, redelivery cannot change it.
		p.logger.Info("payment webhook arrived for settled registration",
			slog.String("registration_id", payment.ReferenceID),
			slog.String("payment_id", payment.ID))
		return nil
	case err != nil:
		return fmt.Errorf("settle registration %s: %w", payment.ReferenceID, err)
	}

	if p.metrics != nil {
		p.metrics.RecordTransition(string(datatypes.RegistrationPaid))
		p.metrics.RecordRevenue(payment.AmountMoney.Amount)
	}
	p.publish(datatypes.FeedEvent{
		Kind:           "payment_completed",
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		AmountCents:    payment.AmountMoney.Amount,
		At:             now,
	})
	p.logger.Info("registration settled",
		slog.String("registration_id", reg.ID),
		slog.String("ticket", reg.TicketNumber),
		slog.Int64("amount_cents", payment.AmountMoney.Amount))
	return nil
}

// failPayment releases the hold for a failed or canceled payment. The
// status change and the inventory release commit in one transaction, so
// a transient store error cannot strand the hold behind a registration
// that already left pending.
func (p *Processor) failPayment(ctx context.Context, payment *paymentObject) error {
	if payment.ReferenceID == "" {
		return retry.Permanent(fmt.Errorf("payment %s has no reference_id", payment.ID))
	}

	reg, err := p.store.TransitionAndRelease(ctx, payment.ReferenceID, datatypes.RegistrationPaymentFailed, nil)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("registration %s not found yet: %w", payment.ReferenceID, err)
	case errors.Is(err, storage.ErrInvalidTransition):
		return nil // already left pending; hold was released by that move
	case err != nil:
		return fmt.Errorf("fail registration %s: %w", payment.ReferenceID, err)
	}

	if p.metrics != nil {
		p.metrics.RecordTransition(string(datatypes.RegistrationPaymentFailed))
	}
	p.logger.Info("payment failed, hold released",
		slog.String("registration_id", reg.ID),
		slog.String("payment_status", payment.Status))
	return nil
}

// =============================================================================
// Refunds
// =============================================================================

func (p *Processor) processRefund(ctx context.Context, env Envelope) error {
	data, err := decodeData(env)
	if err != nil {
		return err
	}
	refund := data.Object.Refund
	if refund == nil || refund.ID == "" {
		return retry.Permanent(fmt.Errorf("%s event %s has no refund object", env.Type, env.EventID))
	}

	record := datatypes.PaymentRecord{
		PaymentID:      refund.ID,
		WebhookEventID: env.EventID,
		Kind:           "refund",
		Status:         refund.Status,
		AmountCents:    refund.AmountMoney.Amount,
		Currency:       refund.AmountMoney.Currency,
	}
	if err := p.store.RecordPayment(ctx, record); err != nil {
		return fmt.Errorf("record refund %s: %w", refund.ID, err)
	}
	if refund.Status != "COMPLETED" {
		return nil
	}

	// Refunds reference the payment, not the registration; find the
	// registration that settled with that payment id.
	reg, err := p.findByPaymentID(ctx, refund.PaymentID)
	if err != nil {
		return err
	}

	reg, err = p.store.TransitionAndRelease(ctx, reg.ID, datatypes.RegistrationRefunded, nil)
	switch {
	case errors.Is(err, storage.ErrInvalidTransition):
		return nil // replayed refund
	case err != nil:
		return fmt.Errorf("refund registration %s: %w", reg.ID, err)
	}

	if p.metrics != nil {
		p.metrics.RecordTransition(string(datatypes.RegistrationRefunded))
	}
	p.publish(datatypes.FeedEvent{
		Kind:           "refund_completed",
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		AmountCents:    refund.AmountMoney.Amount,
		At:             time.Now().UTC(),
	})
	p.logger.Info("registration refunded", slog.String("registration_id", reg.ID))
	return nil
}

func (p *Processor) findByPaymentID(ctx context.Context, paymentID string) (datatypes.Registration, error) {
	if paymentID == "" {
		return datatypes.Registration{}, retry.Permanent(errors.New("refund has no payment_id"))
	}
	regs, err := p.store.ListRegistrations(ctx, "")
	if err != nil {
		return datatypes.Registration{}, fmt.Errorf("scan registrations: %w", err)
	}
	for _, reg := range regs {
		if reg.SquarePaymentID == paymentID {
			return reg, nil
		}
	}
	// The settling payment webhook may still be in flight behind us.
	return datatypes.Registration{}, fmt.Errorf("no registration settled with payment %s", paymentID)
}

// =============================================================================
// Analytics-only Events
// =============================================================================

// recordOnly stores payout and dispute events for the analytics surface
// without touching any registration.
func (p *Processor) recordOnly(ctx context.Context, env Envelope) error {
	data, err := decodeData(env)
	if err != nil {
		return err
	}

	record := datatypes.PaymentRecord{
		WebhookEventID: env.EventID,
	}
	switch {
	case data.Object.Payout != nil:
		record.PaymentID = data.Object.Payout.ID
		record.Kind = "payout"
		record.Status = data.Object.Payout.Status
		record.AmountCents = data.Object.Payout.AmountMoney.Amount
		record.Currency = data.Object.Payout.AmountMoney.Currency
	case data.Object.Dispute != nil:
		record.PaymentID = data.Object.Dispute.ID
		record.Kind = "dispute"
		record.Status = data.Object.Dispute.State
		record.AmountCents = data.Object.Dispute.DisputedMoney.Amount
		record.Currency = data.Object.Dispute.DisputedMoney.Currency
	default:
		return retry.Permanent(fmt.Errorf("%s event %s has no recognized object", env.Type, env.EventID))
	}

	if err := p.store.RecordPayment(ctx, record); err != nil {
		return fmt.Errorf("record %s %s: %w", record.Kind, record.PaymentID, err)
	}
	return nil
}

func (p *Processor) publish(event datatypes.FeedEvent) {
	if p.publisher != nil {
		p.publisher.Publish(event)
	}
}
