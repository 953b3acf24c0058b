// Package api implements the HTTP JSON API of minerdash-server.
//
// NewRouter(svc, logger) returns a gorilla/mux router that serves:
//
//	GET /api/v1/timeline         5-minute efficiency series per robot ({} on failure)
//	GET /api/v1/liveness/count   fleet-wide live bot count (bare integer)
//	GET /api/v1/liveness         live bots per robot
//	GET /api/v1/meta             expected bots per robot
//	GET /api/v1/meta/tiers       live/capacity ratio, tier, colour, diagnostics
//	GET /api/v1/totals           mined total per robot
//	GET /api/v1/delta            percent change between the two latest totals
//	GET /api/v1/last-collection  latest HH:MM:SS across the fleet, or null
//	GET /api/v1/robots           distinct robot ids
//	GET /api/v1/performance      raw efficiency samples
//	GET /api/v1/tables/{name}    column layout of a table
//	GET /api/v1/snapshot         every view in one document
//	GET /api/v1/alerts           configured alert rules that fire now
//	GET /api/v1/health           repository reachability (503 when down)
//
// The dashboard's older URLs (/get_timeline-data/, /get_bots_funcionando/,
// /get_bots_meta/, /get_total_minerado/, /get_scroller/, /get_ultima_coleta/)
// route to the same handlers as their /api/v1 counterparts; the liveness alias
// serves the per-robot envelope.
//
// All endpoints respond with Content-Type: application/json and return 405
// for non-GET methods. Failures use {"status":"error","message":...} with
// HTTP 500. Wrap adds panic recovery, CORS, request ids, access logging and
// a per-request timeout.
package api
