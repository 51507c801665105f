// Package http maps the license service operations onto the HTTP
// surface: /validate for clients, the guarded admin endpoints for
// create/delete/reset/toggle/list, and the operational /healthz and
// /metrics endpoints.
package http
