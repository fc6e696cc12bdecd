// Package process supervises a single long-running child process.
//
// The Manager owns the child end to end: it launches the binary in its
// own process group, relaunches it with exponential backoff when it
// dies unexpectedly, and tears the whole group down on Stop (SIGTERM,
// then SIGKILL after a grace period). A child that stays up past the
// stable threshold earns a fresh restart budget.
//
// For binaries that speak a line protocol on their standard streams,
// such as cec-client, Config.OnStdoutLine delivers stdout line by line
// and WriteLine feeds stdin:
//
//	cfg := process.DefaultConfig(
//	    "cec-client", "/usr/bin/cec-client", []string{"-d", "8", "-t", "r"},
//	)
//	cfg.OnStdoutLine = parse
//	mgr := process.NewManager(cfg)
//
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
//
//	mgr.WriteLine("tx 10:8F")
//
// Exit errors pass through IsRecoverable before a relaunch is
// attempted, so a wrapper can mark a failure as permanent by
// implementing RecoverableError.
package process
