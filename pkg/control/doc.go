/*
Package control is pgbackup's management surface: a Unix-domain socket
serving length-prefixed JSON requests, the channel the pgbackup CLI and
any other local operator tooling use to talk to a running daemon.

# Architecture

One Server listens on a single Unix-domain socket path and accepts
connections in a background goroutine. Each connection gets its own
goroutine reading and dispatching requests until the client disconnects:

	┌────────────────────────────────────────────────────┐
	│           <unix-socket-dir>/pgmoneta                │
	└───────────────────────┬─────────────────────────────┘
	                        │ net.Listen("unix", ...)
	                        ▼
	                  accept loop (goroutine)
	                        │
	          ┌─────────────┼─────────────┐
	          ▼             ▼             ▼
	      conn 1         conn 2         conn 3
	    (goroutine)    (goroutine)    (goroutine)
	          │
	          ▼
	    read frame → dispatch → write frame(s)

# Wire Format

Every message, request or response, is a u32 big-endian length prefix
followed by that many bytes of JSON. A Request carries {id, command,
arguments}; a Response carries {Response, Timestamp, Outcome, Error,
Data, Final}. Most commands reply with exactly one Response with Final
set; LIST_BACKUP replies with one Response per backup followed by a
Final response with no Data, so a client can render results as they
arrive instead of buffering the whole list.

# Commands

	BACKUP       start a backup (server, kind, source_dir, compression, encryption)
	RESTORE      restore a backup (server, label, destination)
	DELETE       delete a backup (server, label)
	LIST_BACKUP  stream a server's backups
	STATUS       report online/offline for one server or all servers
	DETAILS      fetch one backup's catalogue entry
	ISALIVE      liveness check, no arguments
	STOP         request daemon shutdown
	RESET        clear a server's repository lock
	RELOAD       reload configuration

# Usage

	orch := orchestrator.New(cat, cfg.WorkerPoolSize)
	srv := control.New(orch, servers, cfg.UnixSocketDir+"/pgmoneta")
	srv.Stop = func() { close(stopCh) } // stopCh: the daemon main loop's shutdown channel
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("control socket failed to start")
	}
	defer srv.Close()

	client, _ := control.Dial(cfg.UnixSocketDir + "/pgmoneta")
	defer client.Close()
	resp, err := client.Backup("primary", "full", "", "/var/lib/postgresql/16/main", "zstd", "")

# Integration Points

This package integrates with:

  - pkg/orchestrator: BACKUP/RESTORE/DELETE dispatch to RunBackup/RunRestore/Delete
  - pkg/catalogue: LIST_BACKUP/DETAILS read directly from the catalogue
  - pkg/config: STATUS/RESET read and mutate config.Server's atomic flags
  - pkg/metrics: every request is counted and timed by command and outcome

# Design Patterns

Goroutine-Per-Connection:
  - The accept loop never blocks on a slow client; each connection's
    request/response loop runs independently until it errors or the
    client disconnects

Streaming Replies:
  - LIST_BACKUP is the one command that writes more than one frame per
    request, terminated by Final rather than a fixed count, so the
    catalogue size never needs to be known up front

# See Also

  - spec.md §4.12 - the management surface this package implements
  - pkg/orchestrator - the operations commands dispatch to
*/
package control
