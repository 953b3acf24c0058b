// Package alerts evaluates threshold rules against per-robot dashboard
// values. Evaluation is stateless: every call reports the rules that fire
// for the views it is given, with no cooldown or history between calls.
package alerts
