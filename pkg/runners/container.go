package runners

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ContainerSpec describes a job container or service container.
type ContainerSpec struct {
	Name       string
	Image      string
	Env        map[string]string
	Volumes    map[string]string // host path -> container path
	Ports      []string
	Options    []string
	PullPolicy string // "IfNotPresent" (default), "Always", "Never"
}

// Container is a running (or created-but-not-started) docker container
// handle. The zero value is not usable; construct via Create.
type Container struct {
	Name string
}

// Create pulls the image per spec.PullPolicy, then `docker create`s the
// container with the host workspace mounted at /workspace and an
// idling entrypoint, ready for Start + Exec.
func Create(ctx context.Context, spec ContainerSpec, workspaceHostPath string) (*Container, error) {
	if err := pullIfNeeded(ctx, spec.Image, spec.PullPolicy); err != nil {
		return nil, err
	}

	args := []string{"create", "--name", spec.Name, "-w", "/workspace",
		"-v", workspaceHostPath + ":/workspace"}
	for host, cont := range spec.Volumes {
		args = append(args, "-v", host+":"+cont)
	}
	for k, v := range spec.Env {
		args = append(args, "-e", k+"="+v)
	}
	for _, p := range spec.Ports {
		args = append(args, "-p", p)
	}
	args = append(args, spec.Options...)
	args = append(args, spec.Image, "tail", "-f", "/dev/null")

	if _, _, err := docker(ctx, args...); err != nil {
		return nil, &Error{Kind: ErrCreate, Message: fmt.Sprintf("create container %s: %v", spec.Name, err)}
	}

	return &Container{Name: spec.Name}, nil
}

// Start brings up a created container.
func (c *Container) Start(ctx context.Context) error {
	if _, _, err := docker(ctx, "start", c.Name); err != nil {
		return &Error{Kind: ErrCreate, Message: fmt.Sprintf("start container %s: %v", c.Name, err)}
	}
	return nil
}

// Exec runs a script inside the container via `sh -c`, the only action
// family container runners support — callers must route non-script
// step kinds to Skipped before reaching Exec.
func (c *Container) Exec(ctx context.Context, script, workingDir string, onOutput OutputFunc) (*RunResult, *LogResult, error) {
	dir := workingDir
	if dir == "" {
		dir = "/workspace"
	}
	stdout, stderr, err := dockerStream(ctx, onOutput, "exec", "-w", dir, c.Name, "sh", "-c", script)

	result := &RunResult{Stdout: stdout, Stderr: stderr}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return nil, nil, &Error{Kind: ErrSpawn, Message: fmt.Sprintf("exec in container %s: %v", c.Name, err)}
		}
	}
	return result, ParseLoggingCommands(result.Stdout), nil
}

// Stop force-removes the container. Safe to call more than once and
// must be called on every exit path, including after a failed Exec.
func (c *Container) Stop(ctx context.Context) error {
	_, _, err := docker(ctx, "rm", "-f", c.Name)
	return err
}

// StartService brings up a detached service container (e.g. a test
// database) alongside the job container.
func StartService(ctx context.Context, spec ContainerSpec) error {
	if err := pullIfNeeded(ctx, spec.Image, spec.PullPolicy); err != nil {
		return err
	}
	args := []string{"run", "-d", "--name", spec.Name}
	for k, v := range spec.Env {
		args = append(args, "-e", k+"="+v)
	}
	for _, p := range spec.Ports {
		args = append(args, "-p", p)
	}
	args = append(args, spec.Options...)
	args = append(args, spec.Image)

	if _, _, err := docker(ctx, args...); err != nil {
		return &Error{Kind: ErrCreate, Message: fmt.Sprintf("start service %s: %v", spec.Name, err)}
	}
	return nil
}

// StopService force-removes a service container started by StartService.
func StopService(ctx context.Context, name string) error {
	_, _, err := docker(ctx, "rm", "-f", name)
	return err
}

func pullIfNeeded(ctx context.Context, image, policy string) error {
	if policy == "Never" {
		return nil
	}
	if policy != "Always" {
		if _, _, err := docker(ctx, "image", "inspect", image); err == nil {
			return nil
		}
	}
	if _, _, err := docker(ctx, "pull", image); err != nil {
		return &Error{Kind: ErrPull, Message: fmt.Sprintf("pull image %s: %v", image, err)}
	}
	return nil
}

func docker(ctx context.Context, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "docker", args...) //#nosec G204 -- args are runner-constructed, not untrusted input
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return strings.TrimRight(stdout.String(), "\n"), strings.TrimRight(stderr.String(), "\n"), err
}

func dockerStream(ctx context.Context, onOutput OutputFunc, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "docker", args...) //#nosec G204 -- args are runner-constructed, not untrusted input
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", "", err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", "", err
	}
	if err := cmd.Start(); err != nil {
		return "", "", err
	}

	var stdout, stderr strings.Builder
	done := make(chan struct{}, 2)
	go streamLines(stdoutPipe, &stdout, false, onOutput, done)
	go streamLines(stderrPipe, &stderr, true, onOutput, done)
	<-done
	<-done

	err = cmd.Wait()
	return stdout.String(), stderr.String(), err
}
