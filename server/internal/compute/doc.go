// Package compute derives dashboard metrics from raw fleet samples.
//
// Every function here is a pure function of its inputs: the dashboard
// service reads a fresh snapshot from the repository on each request and
// hands the typed records to these calculators.
//
// timeline.go buckets the sample log into 5-minute slots and averages
// efficiency per robot. Buckets are ordered by a numeric (hour, minute) key.
//
// liveness.go classifies status records as live when they were collected
// within the trailing staleness window. The Classifier takes an injectable
// clock.Clock so tests are deterministic.
//
// meta.go compares live bot counts with expected capacity and assigns a Tier:
// Healthy at 0.7 and above, Degraded from 0.4 up to 0.7, Critical below 0.4.
//
// delta.go computes the percent change between a robot's two most recent
// cumulative totals. totals.go holds the sum and max reporters.
package compute
