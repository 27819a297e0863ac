// Package ares provides the Agent Reliability Enforcement System: a
// verification and accountability layer that sits between autonomous
// agents and the systems they act on.
//
// ARES does not execute agent work itself. It observes declared tool
// calls, collects completion evidence, runs a weighted multi-strategy
// verification pipeline against that evidence, tracks per-agent
// reliability over a sliding window, and replays compensating actions
// when a task's completion claim turns out to be false.
//
// # Quick Start
//
// Run the daemon against a config file:
//
//	aresd serve --config ares.yaml
//
// Or use the Core API directly as a library:
//
//	import (
//	    "github.com/neikan-bsn/ares/pkg/ares"
//	    "github.com/neikan-bsn/ares/pkg/config"
//	    "github.com/neikan-bsn/ares/pkg/store"
//	)
//
// # Core API
//
// pkg/ares.Service exposes seven operations: register_agent,
// submit_tool_call, submit_completion, get_verification, get_evidence,
// get_reliability, and subscribe. Every other package in this module
// (collector, validator, verifier, monitor, rollback, bus, store)
// implements one of C1-C9 and is wired together by that facade.
//
// # Architecture
//
//	Agent → submit_tool_call/submit_completion → ares.Service
//	          ├─ Tool-Call Validator   (protocol/authz/safety checks)
//	          ├─ Proof-of-Work Collector (evidence normalization)
//	          ├─ Completion Verifier   (weighted strategy pipeline)
//	          ├─ Behavior Monitor      (sliding-window anomaly detection)
//	          ├─ Rollback Manager      (checkpoint + compensating actions)
//	          └─ Coordination Bus      (durable event log + pub/sub)
//
// # Status
//
// ARES is pre-1.0; the Core API shape is stable but storage schemas and
// configuration keys may still change between releases.
package ares
