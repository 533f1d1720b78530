//go:build mage
// +build mage

package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

type Pi mg.Namespace

const (
	binName    = "hoststat"
	configName = "hoststat.yaml"
	piBuildDir = "bin/pi"
	remoteDir  = "hoststat"
)

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Build compiles the server and the CLI for this machine into bin/.
func Build() error {
	if err := sh.RunV("go", "build", "-o", filepath.Join("bin", binName), "./cmd/server.go"); err != nil {
		return err
	}
	return sh.RunV("go", "build", "-o", filepath.Join("bin", binName+"-cli"), "./cmd/cli")
}

// Build cross-compiles the server for linux/arm64.
func (Pi) Build() error {
	env := map[string]string{"GOOS": "linux", "GOARCH": "arm64"}
	return sh.RunWithV(env, "go", "build", "-o", filepath.Join(piBuildDir, binName), "./cmd/server.go")
}

// Clean removes the cross-compiled binary.
func (Pi) Clean() error {
	return sh.Rm(filepath.Join(piBuildDir, binName))
}

// Deploy copies the server, and hoststat.yaml when present, to ~/hoststat on
// the Pi. Requires key based SSH access.
func (Pi) Deploy(host, user string) error {
	mg.Deps(Pi.Build)
	pi := piTarget{host: host, user: user}

	fmt.Printf("deploying to %s:%s\n", pi.login(), pi.dir())
	if err := sh.Run("ssh", pi.login(), "mkdir", "-p", pi.dir()); err != nil {
		return fmt.Errorf("creating %s: %w", pi.dir(), err)
	}
	if err := pi.copy(filepath.Join(piBuildDir, binName)); err != nil {
		return err
	}
	// Without a config file the server runs on defaults.
	if _, err := os.Stat(configName); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return pi.copy(configName)
}

// Start deploys and runs the server on the Pi, streaming its output until it
// exits. Ctrl-C sends SIGTERM; a second one sends SIGKILL.
func (Pi) Start(host, user string) error {
	mg.Deps(mg.F(Pi.Deploy, host, user))
	pi := piTarget{host: host, user: user}

	client, err := dialAgent(pi)
	if err != nil {
		return fmt.Errorf("ssh: %w", err)
	}
	defer client.Close()
	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("ssh session: %w", err)
	}
	defer session.Close()
	session.Stdout = os.Stdout
	session.Stderr = os.Stderr

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	if err := session.Start(fmt.Sprintf("cd %s && ./%s -config %s", remoteDir, binName, configName)); err != nil {
		return fmt.Errorf("starting %s: %w", binName, err)
	}
	go forwardSignals(sigs, session)

	return remoteExit(session.Wait())
}

func forwardSignals(sigs <-chan os.Signal, session *ssh.Session) {
	fmt.Println("stopping server:", <-sigs)
	session.Signal(ssh.SIGTERM)
	<-sigs
	fmt.Println("killing server")
	session.Signal(ssh.SIGKILL)
	session.Close()
	os.Exit(1)
}

// remoteExit treats the exit codes of a signalled server as a clean stop.
func remoteExit(err error) error {
	var exitErr *ssh.ExitError
	if !errors.As(err, &exitErr) {
		return err
	}
	switch code := exitErr.ExitStatus(); code {
	case 128 + int(syscall.SIGTERM), 128 + int(syscall.SIGINT):
		fmt.Printf("server stopped (status %d)\n", code)
		return nil
	default:
		return fmt.Errorf("server exited with status %d", code)
	}
}

type piTarget struct {
	host, user string
}

func (p piTarget) login() string { return p.user + "@" + p.host }

func (p piTarget) dir() string { return "/home/" + p.user + "/" + remoteDir }

func (p piTarget) copy(local string) error {
	dst := fmt.Sprintf("%s:%s/%s", p.login(), p.dir(), filepath.Base(local))
	if err := sh.Run("scp", local, dst); err != nil {
		return fmt.Errorf("copying %s: %w", local, err)
	}
	return nil
}

// dialAgent connects with whatever keys the running ssh-agent holds.
func dialAgent(p piTarget) (*ssh.Client, error) {
	var auth []ssh.AuthMethod
	if conn, err := net.Dial("unix", os.Getenv("SSH_AUTH_SOCK")); err == nil {
		if signers, err := agent.NewClient(conn).Signers(); err == nil {
			auth = append(auth, ssh.PublicKeys(withSHA2(signers)...))
		}
	}
	if len(auth) == 0 {
		fmt.Println("ssh-agent has no keys")
	}

	addr := net.JoinHostPort(p.host, "22")
	fmt.Println("dialing", addr)
	return ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            p.user,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // Dev only.
	})
}

// withSHA2 restricts RSA keys to rsa-sha2 signatures, which current sshd
// builds require.
func withSHA2(signers []ssh.Signer) []ssh.Signer {
	out := make([]ssh.Signer, 0, len(signers))
	for _, s := range signers {
		as, ok := s.(ssh.AlgorithmSigner)
		if !ok || s.PublicKey().Type() != ssh.KeyAlgoRSA {
			out = append(out, s)
			continue
		}
		ms, err := ssh.NewSignerWithAlgorithms(as, []string{ssh.KeyAlgoRSASHA256, ssh.KeyAlgoRSASHA512})
		if err != nil {
			out = append(out, s)
			continue
		}
		out = append(out, ms)
	}
	return out
}
