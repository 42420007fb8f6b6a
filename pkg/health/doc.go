/*
Package health provides health check mechanisms for monitoring PostgreSQL
server reachability in pgbackup.

This package implements three types of health checks: HTTP, TCP, and Exec.
Health checks enable automatic detection of unreachable servers and flip
the per-server online flag that orchestrator.Retention consults and the
control surface reports, so a retention sweep skips an unreachable server
instead of hanging on it.

# Architecture

pgbackup's health check system follows a modular checker design:

	┌─────────────────────────────────────────────────────────────┐
	│                   Health Check System                       │
	└─────┬──────────────────────────────────────────────────────┘
	      │
	      ▼
	┌──────────────────────────────────────────────────────────────┐
	│                     Checker Interface                        │
	│  • Check(ctx) Result                                         │
	│  • Type() CheckType                                          │
	└────────┬─────────────────────────────────────────────────────┘
	         │
	    ┌────┴──────┬──────────┐
	    ▼           ▼          ▼
	┌────────┐  ┌──────┐  ┌────────┐
	│  HTTP  │  │ TCP  │  │  Exec  │
	│Checker │  │Checker│ │Checker │
	└────────┘  └──────┘  └────────┘
	     │          │          │
	     ▼          ▼          ▼
	  GET /    Connect to   pg_isready
	  /health   host:port

## Health Check Flow

 1. Health monitor loop fires on a timer for each configured server
 2. Run the server's configured checker
 3. If check fails: Increment consecutive failures
 4. If failures >= Retries: flip config.Server.SetOnline(false)
 5. On the next success: flip config.Server.SetOnline(true)

# Health Check Types

## HTTP Health Checks

HTTP checks perform HTTP requests to verify a dependent service's health
(e.g. a replica's own status endpoint):

	Check Type: HTTP
	Configuration:
	├── URL: http://host:8080/health
	├── Method: GET, POST, HEAD
	├── Headers: Custom HTTP headers
	├── Expected Status: 200-399 (configurable)
	└── Timeout: 10 seconds

## TCP Health Checks

TCP checks verify that a PostgreSQL server's port is listening and
accepting connections — the cheapest reachability signal and the one
the health monitor uses by default:

	Check Type: TCP
	Configuration:
	├── Address: host:5432
	├── Timeout: 5 seconds
	└── Connection test only (no data sent)

## Exec Health Checks

Exec checks run a command on the host and check its exit code, e.g.
pg_isready for a definitive readiness signal beyond bare TCP reachability:

	Check Type: Exec
	Configuration:
	├── Command: ["pg_isready", "-h", host, "-p", port]
	├── Timeout: 10 seconds
	├── Exit code 0 → Healthy
	└── Exit code != 0 → Unhealthy

# Core Components

## Checker Interface

All health checkers implement this interface:

	type Checker interface {
		Check(ctx context.Context) Result
		Type() CheckType
	}

This allows polymorphic health checking — the monitor doesn't need to know
the check type, just calls Check() and interprets the Result.

## Result Structure

All checks return a standardized Result:

	type Result struct {
		Healthy   bool          // Check passed?
		Message   string        // Human-readable message
		CheckedAt time.Time     // When check ran
		Duration  time.Duration // How long check took
	}

## Status Tracking

Status tracks health over time:

	type Status struct {
		ConsecutiveFailures  int    // Failure streak
		ConsecutiveSuccesses int    // Success streak
		LastCheck            time.Time
		LastResult           Result
		Healthy              bool   // Current health state
		StartedAt            time.Time
	}

The status implements hysteresis - multiple failures required before
marking unhealthy, preventing flapping from transient network blips.

## Configuration

	type Config struct {
		Interval    time.Duration  // Time between checks (default: 30s)
		Timeout     time.Duration  // Max check duration (default: 10s)
		Retries     int            // Failures before unhealthy (default: 3)
		StartPeriod time.Duration  // Grace period at daemon startup
	}

# Usage Examples

## TCP Health Check

	import "github.com/cuemby/pgbackup/pkg/health"

	checker := health.NewTCPChecker("10.0.0.5:5432")
	checker.WithTimeout(3 * time.Second)

	result := checker.Check(ctx)
	if result.Healthy {
		fmt.Println("server is accepting connections")
	} else {
		fmt.Printf("server unreachable: %s\n", result.Message)
	}

## Exec Health Check

	checker := health.NewExecChecker([]string{
		"pg_isready",
		"-h", "10.0.0.5",
		"-p", "5432",
	})
	checker.WithTimeout(5 * time.Second)

	result := checker.Check(ctx)
	if result.Healthy {
		fmt.Println("PostgreSQL is ready")
	} else {
		fmt.Printf("PostgreSQL not ready: %s\n", result.Message)
	}

## Status Tracking Loop

	status := health.NewStatus()
	config := health.Config{
		Interval: 10 * time.Second,
		Timeout:  5 * time.Second,
		Retries:  3,
	}
	checker := health.NewTCPChecker("10.0.0.5:5432")

	for {
		ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
		result := checker.Check(ctx)
		cancel()

		status.Update(result, config)
		if !status.Healthy {
			server.SetOnline(false)
		} else {
			server.SetOnline(true)
		}

		time.Sleep(config.Interval)
	}

# Integration Points

  - pkg/config: Status flips config.Server's atomic online flag
  - pkg/orchestrator: Retention consults Server.Online() before running
  - pkg/metrics: Collector reports ServersOnline from the same flag

# Design Patterns

## Strategy Pattern

	Checker (interface)
	├── HTTPChecker (HTTP strategy)
	├── TCPChecker (TCP strategy)
	└── ExecChecker (Exec strategy)

## Builder Pattern

	checker := NewTCPChecker(addr).WithTimeout(5 * time.Second)

## Hysteresis Pattern

	Healthy → 1 failure → Still healthy
	Healthy → 3 failures → Unhealthy!
	Unhealthy → 1 success → Healthy!

This prevents a single dropped packet from marking a server offline and
making the retention sweep skip it.

## Context-Based Cancellation

All checks respect context deadlines:

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result := checker.Check(ctx)

# Recommended Check Intervals

  - TCP: 5-15 seconds (cheapest, used as the default)
  - Exec (pg_isready): 30-60 seconds (heavier, confirms real readiness)
  - HTTP: 10-30 seconds (only relevant when checking an auxiliary endpoint)

# Troubleshooting

## False Positive Offline Marks

If a reachable server is marked offline:

1. Check timeout settings — too short for network latency?
2. Check retry count — Retries = 1 is very sensitive to transients;
   3 is the tolerant default.
3. Confirm the check address/port actually matches the server's
   listener, not a stale configuration value.

## Checks Not Running

1. Verify the server's health monitor was started at daemon startup.
2. Check logs for "health check" messages and checker-construction errors.
3. Confirm network connectivity from the pgbackup host to the server.

# Security Considerations

## Exec Health Checks

  - Validate command arguments before building the Command slice —
    never build them by interpolating untrusted input
  - Limit command execution time via Timeout

# See Also

  - pkg/config - Server.Online()/SetOnline() flag consulted by checks
  - pkg/orchestrator - Retention gates on Server.Online()
*/
package health
