// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the shared validator instance.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct-tag constraints and the cross-field rules
// the tags cannot express.
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, translateError(fe))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := c.validateRealtimeURL(); err != nil {
		return err
	}

	if c.Status.Enabled && c.Status.Addr == "" {
		return fmt.Errorf("TEMPO_STATUS_ADDR is required when the status server is enabled")
	}

	return nil
}

// validateRealtimeURL requires a websocket scheme.
func (c *Config) validateRealtimeURL() error {
	u, err := url.Parse(c.Realtime.URL)
	if err != nil {
		return fmt.Errorf("TEMPO_REALTIME_URL is invalid: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("TEMPO_REALTIME_URL must use ws:// or wss:// (got %q)", u.Scheme)
	}
	return nil
}

// translateError converts a validator.FieldError to a readable message.
func translateError(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "gt", "gte", "lt", "lte":
		return fmt.Sprintf("%s must be %s %s", field, fe.Tag(), fe.Param())
	case "gtfield", "gtefield":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
