// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

// SignatureHeader is the header Square sends with each delivery.
const SignatureHeader = "x-square-hmacsha256-signature"

// ErrBadSignature is returned when the delivery signature does not match.
var ErrBadSignature = errors.New("webhooks: signature mismatch")

// Verifier checks Square webhook signatures. Square signs
// base64(HMAC-SHA256(key, notification_url + raw_body)); the key is the
// signature secret for whichever environment (production or sandbox) the
// subscription lives in.
type Verifier struct {
	secret          []byte
	notificationURL string
}

// NewVerifier builds a verifier for one signature secret and the exact
// notification URL configured on the Square subscription. The URL must
// match byte for byte, scheme and all, or every signature fails.
func NewVerifier(secret, notificationURL string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("webhooks: signature secret is required")
	}
	if notificationURL == "" {
		return nil, errors.New("webhooks: notification url is required")
	}
	return &Verifier{
		secret:          []byte(secret),
		notificationURL: notificationURL,
	}, nil
}

// Verify checks the signature header against the raw request body.
// Returns ErrBadSignature on mismatch. Comparison is constant time.
func (v *Verifier) Verify(signature string, body []byte) error {
	if signature == "" {
		return ErrBadSignature
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(v.notificationURL))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return ErrBadSignature
	}
	return nil
}
