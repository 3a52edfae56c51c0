package orchestrator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aristanetworks/dataplane-harness/pkg/config"
	"golang.org/x/crypto/ssh"
)

// triggerReboot issues the remote command sequence that starts the DUT's
// reboot: a whole-device fast-reboot, or a warm restart. Exit codes 0 and
// 255 are both treated as success — 255 is what a dropped SSH session
// reports when the DUT goes down mid-command.
func triggerReboot(ctx context.Context, dut config.DUTConfig) error {
	switch dut.RebootType {
	case config.RebootFast:
		return runRemoteCommand(ctx, dut, "sudo fast-reboot")
	case config.RebootWarm:
		return runRemoteCommand(ctx, dut, warmRebootCommand(dut.RebootService))
	default:
		return fmt.Errorf("unsupported reboot type %q", dut.RebootType)
	}
}

// warmRebootCommand builds the remote shell sequence for a warm reboot. A
// named service gets its warm-restart preparation step enabled, then a
// service-specific live-restart command, a 2s settle delay, and finally a
// restart of the service itself. An unnamed service reboots the whole DUT.
func warmRebootCommand(service string) string {
	if service == "" {
		return "sudo warm-reboot"
	}

	var live string
	switch service {
	case "teamd":
		live = "docker exec -i teamd pkill -USR1 teamd"
	case "swss":
		live = "docker exec -i swss orchagent_restart_check -w 1000"
	case "bgp":
		live = "docker exec -i bgp pkill -9 zebra && docker exec -i bgp pkill -9 bgpd"
	default:
		live = fmt.Sprintf("echo warm restart for %s is not supported, proceeding to cold restart", service)
	}

	return fmt.Sprintf(
		"sudo config warm_restart enable %s; %s; sleep 2; sudo systemctl restart %s",
		service, live, service,
	)
}

func runRemoteCommand(ctx context.Context, dut config.DUTConfig, cmd string) error {
	key, err := os.ReadFile(dut.SSHKeyPath)
	if err != nil {
		return fmt.Errorf("reading dut ssh key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return fmt.Errorf("parsing dut ssh key: %w", err)
	}

	client, err := ssh.Dial("tcp", dut.Host+":22", &ssh.ClientConfig{
		User:            dut.SSHUser,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("dialing dut %s: %w", dut.Host, err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("opening dut session: %w", err)
	}
	defer session.Close()

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- session.Run(cmd) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-runErrCh:
		return classifyRebootErr(err)
	}
}

func classifyRebootErr(err error) error {
	if err == nil {
		return nil
	}
	if exitErr, ok := err.(*ssh.ExitError); ok {
		if exitErr.ExitStatus() == 255 {
			return nil
		}
		return fmt.Errorf("dut reboot command exited %d: %w", exitErr.ExitStatus(), err)
	}
	if _, ok := err.(*ssh.ExitMissingError); ok {
		// Connection dropped without an exit status: the expected shape
		// of a fast-reboot killing the control plane mid-command.
		return nil
	}
	return fmt.Errorf("dut reboot command failed: %w", err)
}
