// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

/*
Package middleware provides HTTP middleware for the local status server.

Both middlewares use the chi signature func(http.Handler) http.Handler:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)

RequestID takes X-Request-ID from the request or generates a UUID, echoes
it in the response and stores it in the context as the logging correlation
id, so log lines written while serving the request carry it. AccessLog
writes one debug line per request with method, path, status and duration;
probe endpoints are polled often, so the default info level stays quiet.
*/
package middleware
