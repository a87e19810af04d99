// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package httpapi exposes the account lifecycle over HTTP under
// /api/v1/auth.
//
// Every response is a JSON envelope {"message": ..., "data": ...}. Errors map
// from their oops code to an HTTP status and carry only the public message.
// Sessions travel in the HttpOnly "token" cookie; an Authorization: Bearer
// header is accepted as well.
package httpapi
