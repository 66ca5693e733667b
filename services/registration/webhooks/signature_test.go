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
	"encoding/base64"
	"errors"
	"testing"
)

const (
	testSecret = "wh_secret_abc123"
	testURL    = "https://foundersday.events/webhooks/square"
)

func sign(secret, url string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(url))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestNewVerifier(t *testing.T) {
	if _, err := NewVerifier("", testURL); err == nil {
		t.Error("expected error for empty secret")
	}
	if _, err := NewVerifier(testSecret, ""); err == nil {
		t.Error("expected error for empty url")
	}
	if _, err := NewVerifier(testSecret, testURL); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestVerifier_Verify(t *testing.T) {
	v, err := NewVerifier(testSecret, testURL)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	body := []byte(`{"event_id":"evt-1","type":"payment.created"}`)

	t.Run("valid signature", func(t *testing.T) {
		if err := v.Verify(sign(testSecret, testURL, body), body); err != nil {
			t.Errorf("Verify: %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		err := v.Verify(sign("other_secret", testURL, body), body)
		if !errors.Is(err, ErrBadSignature) {
			t.Errorf("err = %v, want ErrBadSignature", err)
		}
	})

	t.Run("wrong url", func(t *testing.T) {
		err := v.Verify(sign(testSecret, "https://evil.example/hook", body), body)
		if !errors.Is(err, ErrBadSignature) {
			t.Errorf("err = %v, want ErrBadSignature", err)
		}
	})

	t.Run("tampered body", func(t *testing.T) {
		sig := sign(testSecret, testURL, body)
		tampered := []byte(`{"event_id":"evt-1","type":"refund.created"}`)
		if err := v.Verify(sig, tampered); !errors.Is(err, ErrBadSignature) {
			t.Errorf("err = %v, want ErrBadSignature", err)
		}
	})

	t.Run("empty signature", func(t *testing.T) {
		if err := v.Verify("", body); !errors.Is(err, ErrBadSignature) {
			t.Errorf("err = %v, want ErrBadSignature", err)
		}
	})

	t.Run("garbage signature", func(t *testing.T) {
		if err := v.Verify("not-base64-at-all!!!", body); !errors.Is(err, ErrBadSignature) {
			t.Errorf("err = %v, want ErrBadSignature", err)
		}
	})
}
